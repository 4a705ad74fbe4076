package sasl

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
)

// CRAMMD5 implements CRAM-MD5 (RFC 2195): the server's challenge is an
// opaque string, typically a timestamp and hostname; the client replies
// with "user <hex hmac-md5(secret, challenge)>".
type CRAMMD5 struct {
	Username string
	Secret   string

	done bool
}

func (c *CRAMMD5) Name() string                  { return "CRAM-MD5" }
func (c *CRAMMD5) SupportsInitialResponse() bool { return false }

func (c *CRAMMD5) Step(challenge []byte) ([]byte, bool, error) {
	if c.done {
		return nil, true, errAlreadyFinished("CRAM-MD5")
	}
	c.done = true
	mac := hmac.New(md5.New, []byte(c.Secret))
	mac.Write(challenge)
	digest := hex.EncodeToString(mac.Sum(nil))
	return []byte(c.Username + " " + digest), true, nil
}
