package session

type Conf struct {
	EncryptionKey string `json:"enckey" validate:"required"` // base64 32-byte key

	ExpireSliding int `json:"expire_sliding" validate:"min=0"` // seconds; refreshed on every request
	ExpireHardcap int `json:"expire_hardcap" validate:"min=1"` // seconds; cookie Max-Age

	// Insecure drops the Secure cookie attribute for plain-http local use.
	Insecure bool `json:"insecure"`
}
