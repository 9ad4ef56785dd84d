package oauth1

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Values from Twitter's "Creating a signature" walkthrough.
const (
	docConsumerKey    = "xvz1evFS4wEEPTGEFPHBog"
	docConsumerSecret = "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw"
	docToken          = "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb"
	docTokenSecret    = "LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE"
	docNonce          = "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg"
	docTimestamp      = 1318622958
	docURL            = "https://api.twitter.com/1.1/statuses/update.json"
)

func docSigner(t *testing.T) *Signer {
	signer, err := New(Config{ConsumerKey: docConsumerKey, ConsumerSecret: docConsumerSecret},
		WithNonceSource(func() string { return docNonce }),
		WithClock(func() time.Time { return time.Unix(docTimestamp, 0) }),
	)
	if err != nil {
		t.Fatalf("creating signer: %v", err)
	}
	return signer
}

func docRequest() Request {
	return Request{
		Method: "POST",
		URL:    docURL,
		Params: map[string]string{
			"status":           "Hello Ladies + Gentlemen, a signed OAuth request!",
			"include_entities": "true",
		},
	}
}

func TestPercentEncode(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("Ladies%20%2B%20Gentlemen", PercentEncode("Ladies + Gentlemen"))
	assert.Equal("An%20encoded%20string%21", PercentEncode("An encoded string!"))
	assert.Equal("Dogs%2C%20Cats%20%26%20Mice", PercentEncode("Dogs, Cats & Mice"))
	assert.Equal("-._~azAZ09", PercentEncode("-._~azAZ09"))
	assert.Equal("%E2%98%83", PercentEncode("☃"))
	assert.Equal("https%3A%2F%2Fapi.x.com%2F2%2Ftweets", PercentEncode("https://api.x.com/2/tweets"))
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	_, err := New(Config{ConsumerKey: "", ConsumerSecret: "secret"})
	assert.ErrorIs(err, ErrorConfiguration)

	_, err = New(Config{ConsumerKey: "key", ConsumerSecret: "   "})
	assert.ErrorIs(err, ErrorConfiguration)

	signer, err := New(Config{ConsumerKey: " key ", ConsumerSecret: "secret\n"})
	assert.Nil(err)
	assert.Equal("key", signer.consumerKey)
	assert.Equal("secret", signer.consumerSecret)
}

func TestSignature(t *testing.T) {
	assert := assert.New(t)

	t.Run("Base String", func(t *testing.T) {
		params := docRequest().Params
		params[ParamConsumerKey] = docConsumerKey
		params[ParamNonce] = docNonce
		params[ParamSignatureMethod] = SignatureMethodHMACSHA1
		params[ParamTimestamp] = "1318622958"
		params[ParamToken] = docToken
		params[ParamVersion] = Version

		expected := "POST&https%3A%2F%2Fapi.twitter.com%2F1.1%2Fstatuses%2Fupdate.json&" +
			"include_entities%3Dtrue%26oauth_consumer_key%3Dxvz1evFS4wEEPTGEFPHBog%26" +
			"oauth_nonce%3DkYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg%26" +
			"oauth_signature_method%3DHMAC-SHA1%26oauth_timestamp%3D1318622958%26" +
			"oauth_token%3D370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb%26" +
			"oauth_version%3D1.0%26" +
			"status%3DHello%2520Ladies%2520%252B%2520Gentlemen%252C%2520a%2520signed%2520OAuth%2520request%2521"
		base := BaseString("POST", docURL, params)
		assert.Equal(expected, base)
		assert.Equal("hCtSmYh+iHYCEqBWrE7C7hYmtUk=", Sign(base, docConsumerSecret, docTokenSecret))
	})

	t.Run("Header", func(t *testing.T) {
		header, err := docSigner(t).Authorization(docRequest(), Token{Token: docToken, Secret: docTokenSecret})
		assert.Nil(err)

		expected := `OAuth oauth_consumer_key="xvz1evFS4wEEPTGEFPHBog", ` +
			`oauth_nonce="kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg", ` +
			`oauth_signature="hCtSmYh%2BiHYCEqBWrE7C7hYmtUk%3D", ` +
			`oauth_signature_method="HMAC-SHA1", ` +
			`oauth_timestamp="1318622958", ` +
			`oauth_token="370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb", ` +
			`oauth_version="1.0"`
		assert.Equal(expected, header)
	})

	t.Run("Deterministic", func(t *testing.T) {
		signer := docSigner(t)
		token := Token{Token: docToken, Secret: docTokenSecret}
		first, err := signer.Authorization(docRequest(), token)
		assert.Nil(err)
		second, err := signer.Authorization(docRequest(), token)
		assert.Nil(err)
		assert.Equal(first, second)
	})

	t.Run("Body params stay out of the header", func(t *testing.T) {
		header, err := docSigner(t).Authorization(docRequest(), Token{Token: docToken, Secret: docTokenSecret})
		assert.Nil(err)
		assert.NotContains(header, "status=")
		assert.NotContains(header, "include_entities")
	})
}

func TestBaseStringOrdering(t *testing.T) {
	assert := assert.New(t)

	forward := map[string]string{}
	forward["a"] = "1"
	forward["b"] = "2"
	backward := map[string]string{}
	backward["b"] = "2"
	backward["a"] = "1"

	for i := 0; i < 20; i++ {
		assert.Equal(BaseString("GET", "https://example.com/x", forward), BaseString("GET", "https://example.com/x", backward))
	}
	assert.Equal("GET&https%3A%2F%2Fexample.com%2Fx&a%3D1%26b%3D2", BaseString("get", "https://example.com/x", forward))
}

func TestAuthorization(t *testing.T) {
	assert := assert.New(t)

	t.Run("Fresh nonce per call", func(t *testing.T) {
		signer, err := New(Config{ConsumerKey: "key", ConsumerSecret: "secret"})
		assert.Nil(err)
		token := Token{Token: "token", Secret: "token-secret"}

		req := Request{Method: "POST", URL: "https://api.x.com/2/tweets"}
		first, err := signer.Authorization(req, token)
		assert.Nil(err)
		second, err := signer.Authorization(req, token)
		assert.Nil(err)
		assert.NotEqual(first, second)
		assert.True(strings.HasPrefix(first, HeaderPrefix))
	})

	t.Run("Rejects bad requests", func(t *testing.T) {
		signer := docSigner(t)
		token := Token{Token: docToken, Secret: docTokenSecret}

		_, err := signer.Authorization(Request{Method: "POST", URL: "https://api.x.com/2/tweets?x=1"}, token)
		assert.ErrorIs(err, ErrorInvalidURL)

		_, err = signer.Authorization(Request{Method: "POST", URL: "/2/tweets"}, token)
		assert.ErrorIs(err, ErrorInvalidURL)

		_, err = signer.Authorization(Request{URL: "https://api.x.com/2/tweets"}, token)
		assert.ErrorIs(err, ErrorInvalidMethod)
	})

	t.Run("Fields sorted by key", func(t *testing.T) {
		header, err := docSigner(t).Authorization(Request{Method: "GET", URL: "https://api.x.com/2/users/me"}, Token{Token: "t", Secret: "s"})
		assert.Nil(err)

		fields := strings.Split(strings.TrimPrefix(header, HeaderPrefix), ", ")
		keys := make([]string, len(fields))
		for i, f := range fields {
			keys[i] = strings.SplitN(f, "=", 2)[0]
		}
		assert.Equal([]string{
			ParamConsumerKey, ParamNonce, ParamSignature, ParamSignatureMethod,
			ParamTimestamp, ParamToken, ParamVersion,
		}, keys)
	})
}
