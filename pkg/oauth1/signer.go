// Package oauth1 builds OAuth 1.0a HMAC-SHA1 Authorization headers for
// requests made on behalf of a user holding an access token.
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nrednav/cuid2"
)

const (
	SignatureMethodHMACSHA1 = "HMAC-SHA1"
	Version                 = "1.0"
	HeaderPrefix            = "OAuth "

	ParamConsumerKey     = "oauth_consumer_key"
	ParamNonce           = "oauth_nonce"
	ParamSignature       = "oauth_signature"
	ParamSignatureMethod = "oauth_signature_method"
	ParamTimestamp       = "oauth_timestamp"
	ParamToken           = "oauth_token"
	ParamVersion         = "oauth_version"
)

var (
	ErrorConfiguration = errors.New("oauth consumer key and secret are required")
	ErrorInvalidURL    = errors.New("request url must be absolute and carry no query string")
	ErrorInvalidMethod = errors.New("request method is required")
)

// Config holds the process wide consumer credentials.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
}

// Token is the per-user access token pair.
type Token struct {
	Token  string
	Secret string
}

// Request describes the outbound call being signed. Params are body parameters
// that take part in the signature base string.
type Request struct {
	Method string
	URL    string
	Params map[string]string
}

type NonceFn func() string
type ClockFn func() time.Time

type Signer struct {
	consumerKey    string
	consumerSecret string
	nonce          NonceFn
	now            ClockFn
}

type Option func(*Signer)

func WithNonceSource(fn NonceFn) Option {
	return func(s *Signer) {
		s.nonce = fn
	}
}

func WithClock(fn ClockFn) Option {
	return func(s *Signer) {
		s.now = fn
	}
}

// New validates the consumer credentials once; a Signer is never built without them.
func New(config Config, opts ...Option) (*Signer, error) {
	key := strings.TrimSpace(config.ConsumerKey)
	secret := strings.TrimSpace(config.ConsumerSecret)
	if key == "" || secret == "" {
		return nil, ErrorConfiguration
	}

	s := &Signer{
		consumerKey:    key,
		consumerSecret: secret,
		nonce:          cuid2.Generate,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authorization returns the value of the Authorization header for req.
func (s *Signer) Authorization(req Request, token Token) (string, error) {
	if req.Method == "" {
		return "", ErrorInvalidMethod
	}
	if !strings.HasPrefix(req.URL, "https://") && !strings.HasPrefix(req.URL, "http://") || strings.ContainsAny(req.URL, "?#") {
		return "", fmt.Errorf("%w: %s", ErrorInvalidURL, req.URL)
	}

	oauthParams := map[string]string{
		ParamConsumerKey:     s.consumerKey,
		ParamNonce:           s.nonce(),
		ParamSignatureMethod: SignatureMethodHMACSHA1,
		ParamTimestamp:       strconv.FormatInt(s.now().Unix(), 10),
		ParamToken:           token.Token,
		ParamVersion:         Version,
	}

	all := make(map[string]string, len(oauthParams)+len(req.Params))
	for k, v := range req.Params {
		all[k] = v
	}
	for k, v := range oauthParams {
		all[k] = v
	}

	baseString := BaseString(req.Method, req.URL, all)
	oauthParams[ParamSignature] = Sign(baseString, s.consumerSecret, token.Secret)

	return header(oauthParams), nil
}

// BaseString renders METHOD&enc(url)&enc(normalized params). Params are sorted
// by encoded key, ties broken by the full key=value pair.
func BaseString(method, url string, params map[string]string) string {
	sb := strings.Builder{}
	sb.WriteString(strings.ToUpper(method))
	sb.WriteByte('&')
	sb.WriteString(PercentEncode(url))
	sb.WriteByte('&')
	sb.WriteString(PercentEncode(normalizeParams(params)))
	return sb.String()
}

// Sign computes base64(HMAC-SHA1(enc(consumerSecret)&enc(tokenSecret), baseString)).
func Sign(baseString, consumerSecret, tokenSecret string) string {
	key := PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type pair struct {
	key   string
	value string
}

func (p pair) String() string {
	return p.key + "=" + p.value
}

func normalizeParams(params map[string]string) string {
	pairs := make([]pair, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, pair{PercentEncode(k), PercentEncode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].String() < pairs[j].String()
	})

	rendered := make([]string, len(pairs))
	for i, p := range pairs {
		rendered[i] = p.String()
	}
	return strings.Join(rendered, "&")
}

func header(oauthParams map[string]string) string {
	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = fmt.Sprintf(`%s="%s"`, PercentEncode(k), PercentEncode(oauthParams[k]))
	}
	return HeaderPrefix + strings.Join(fields, ", ")
}
