package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	presignAlgorithm = "AWS4-HMAC-SHA256"
	presignRegion    = "auto"
	presignService   = "s3"
	presignTerminal  = "aws4_request"
	unsignedPayload  = "UNSIGNED-PAYLOAD"

	amzDateFormat   = "20060102T150405Z"
	amzDateStampLen = 8
)

// PresignInput carries everything needed to authorize a single PUT.
type PresignInput struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	ObjectKey       string
	// StorageHost is appended to AccountID to form the virtual host,
	// e.g. "r2.cloudflarestorage.com".
	StorageHost    string
	ExpiresSeconds int
	ContentType    string
	Metadata       map[string]string
	SignedAt       time.Time
}

// PresignPut returns a SigV4 query-string presigned URL for a PUT of ObjectKey.
// The client must send exactly the content-type and x-amz-meta-* headers that
// were signed, in their TrimAll form. The result depends only on the input,
// SignedAt included.
func PresignPut(in PresignInput) string {
	host := in.AccountID + "." + in.StorageHost
	canonicalURI := "/" + EncodeRFC3986(in.Bucket) + "/" + encodeObjectKey(in.ObjectKey)

	amzDate := in.SignedAt.UTC().Format(amzDateFormat)
	dateStamp := amzDate[:amzDateStampLen]
	scope := credentialScope(dateStamp)

	headers := [][2]string{{"host", host}}
	if in.ContentType != "" {
		headers = append(headers, [2]string{"content-type", TrimAll(in.ContentType)})
	}
	for key, value := range in.Metadata {
		headers = append(headers, [2]string{"x-amz-meta-" + strings.ToLower(key), TrimAll(value)})
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i][0] < headers[j][0] })

	var canonicalHeaders strings.Builder
	names := make([]string, 0, len(headers))
	for _, h := range headers {
		canonicalHeaders.WriteString(h[0])
		canonicalHeaders.WriteByte(':')
		canonicalHeaders.WriteString(h[1])
		canonicalHeaders.WriteByte('\n')
		names = append(names, h[0])
	}
	signedHeaders := strings.Join(names, ";")

	query := map[string]string{
		"X-Amz-Algorithm":     presignAlgorithm,
		"X-Amz-Credential":    in.AccessKeyID + "/" + scope,
		"X-Amz-Date":          amzDate,
		"X-Amz-Expires":       strconv.Itoa(in.ExpiresSeconds),
		"X-Amz-SignedHeaders": signedHeaders,
	}

	canonicalRequest := strings.Join([]string{
		"PUT",
		canonicalURI,
		CanonicalQuery(query),
		canonicalHeaders.String(),
		signedHeaders,
		unsignedPayload,
	}, "\n")

	stringToSign := strings.Join([]string{
		presignAlgorithm,
		amzDate,
		scope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := DeriveSigningKey(in.SecretAccessKey, dateStamp)
	query["X-Amz-Signature"] = hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	return fmt.Sprintf("https://%s%s?%s", host, canonicalURI, CanonicalQuery(query))
}

// TrimAll strips both ends of a header value and collapses inner whitespace
// runs to a single space.
func TrimAll(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// DeriveSigningKey runs the SigV4 HMAC chain for the fixed auto/s3 scope.
func DeriveSigningKey(secret, dateStamp string) []byte {
	key := hmacSHA256([]byte("AWS4"+secret), dateStamp)
	key = hmacSHA256(key, presignRegion)
	key = hmacSHA256(key, presignService)
	return hmacSHA256(key, presignTerminal)
}

// CanonicalQuery encodes params sorted by key, RFC 3986 style.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, EncodeRFC3986(k)+"="+EncodeRFC3986(params[k]))
	}
	return strings.Join(parts, "&")
}

// EncodeRFC3986 percent-encodes every byte outside the unreserved set
// A-Z a-z 0-9 - _ . ~ using upper-case hex.
func EncodeRFC3986(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}

func encodeObjectKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = EncodeRFC3986(segment)
	}
	return strings.Join(segments, "/")
}

func credentialScope(dateStamp string) string {
	return dateStamp + "/" + presignRegion + "/" + presignService + "/" + presignTerminal
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
