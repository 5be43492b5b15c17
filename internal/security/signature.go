package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	HeaderSignature = "X-Svgembed-Signature"
	HeaderDate      = "X-Svgembed-Date"
	HeaderNonce     = "X-Svgembed-Nonce"
)

var (
	ErrMissingSignature = errors.New("missing signature headers")
	ErrRequestExpired   = errors.New("request date outside allowed window")
)

func ComputeBodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func ComputeSignature(secret string, clientID string, method string, path string, query string, bodyHash string, date string, nonce string) string {
	data := strings.Join([]string{
		clientID,
		strings.ToUpper(method),
		path,
		query,
		bodyHash,
		date,
		nonce,
	}, "\n")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func ValidateSignature(secret string, clientID string, signature string, method string, path string, query string, body []byte, date string, nonce string) bool {
	bodyHash := ComputeBodyHash(body)
	expected := ComputeSignature(secret, clientID, method, path, query, bodyHash, date, nonce)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// CheckDate parses an RFC3339 request date and rejects it when it lies
// further than skew from now in either direction.
func CheckDate(date string, now time.Time, skew time.Duration) error {
	requestTime, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return err
	}
	if now.Sub(requestTime) > skew || requestTime.Sub(now) > skew {
		return ErrRequestExpired
	}
	return nil
}

func ExtractSignatureHeaders(c *gin.Context) (date string, nonce string, signature string, err error) {
	date = c.GetHeader(HeaderDate)
	nonce = c.GetHeader(HeaderNonce)
	signature = c.GetHeader(HeaderSignature)

	if date == "" || nonce == "" || signature == "" {
		return "", "", "", ErrMissingSignature
	}
	return date, nonce, signature, nil
}

func CanonicalPath(r *http.Request) (string, string) {
	return r.URL.Path, r.URL.RawQuery
}
