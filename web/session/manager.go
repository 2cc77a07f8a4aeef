// Package session ties a browser to an invoice editing session through an encrypted cookie.
package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/zeptools/invoicer/db/kvdb"
	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/sec"
)

const CookieName = "invoicer_sid"

type Manager struct {
	Conf              Conf
	Cipher            *sec.XChaCha20Poly1305Cipher
	AppName           string      // for session key, etc.
	BackendKVDBClient kvdb.Client // nil keeps sessions cookie-only
}

func NewManager(appName string, conf Conf, kv kvdb.Client) (*Manager, error) {
	cipher, err := sec.CipherFromEncodedKey(conf.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("web session cipher: %w", err)
	}
	return &Manager{Conf: conf, Cipher: cipher, AppName: appName, BackendKVDBClient: kv}, nil
}

func (m *Manager) WebSessionIDToKVDBKey(sessionID string) string {
	return m.AppName + "_wsession:" + sessionID
}

func (m *Manager) FindWebSessionInKVDB(ctx context.Context, sessionID string) (bool, error) {
	if m.BackendKVDBClient == nil {
		return true, nil
	}
	return m.BackendKVDBClient.Exists(ctx, m.WebSessionIDToKVDBKey(sessionID))
}

// WebSessionIDFromCookie decrypts the session cookie. It does not consult the KV database.
func (m *Manager) WebSessionIDFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	id, err := m.Cipher.DecodeDecrypt(c.Value)
	if err != nil || len(id) == 0 {
		return "", false
	}
	return string(id), true
}

// Ensure returns the session id of the request, creating and setting a new one when the cookie
// is missing, unreadable or no longer known.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	ctx := r.Context()
	if id, ok := m.WebSessionIDFromCookie(r); ok {
		found, err := m.FindWebSessionInKVDB(ctx, id)
		if err != nil {
			return "", err
		}
		if found {
			m.touch(ctx, id)
			return id, nil
		}
	}
	id, err := GenerateWebSessionID()
	if err != nil {
		return "", err
	}
	if m.BackendKVDBClient != nil {
		ttl := time.Duration(m.Conf.ExpireHardcap) * time.Second
		if err := m.BackendKVDBClient.Set(ctx, m.WebSessionIDToKVDBKey(id), time.Now().Unix(), ttl); err != nil {
			return "", fmt.Errorf("store web session: %w", err)
		}
	}
	if err := m.SetWebSessionCookie(w, id); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) touch(ctx context.Context, id string) {
	if m.BackendKVDBClient == nil || m.Conf.ExpireSliding <= 0 {
		return
	}
	ttl := time.Duration(m.Conf.ExpireSliding) * time.Second
	if _, err := m.BackendKVDBClient.Expire(ctx, m.WebSessionIDToKVDBKey(id), ttl); err != nil {
		logging.Component("session").Warn("sliding expiry failed", "err", err)
	}
}

func (m *Manager) SetWebSessionCookie(w http.ResponseWriter, webSessionId string) error {
	encWebSessionId, err := m.Cipher.EncryptEncode([]byte(webSessionId))
	if err != nil {
		return fmt.Errorf("failed to encrypt web session id: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encWebSessionId,
		Path:     "/",
		HttpOnly: true,
		Secure:   !m.Conf.Insecure,
		MaxAge:   m.Conf.ExpireHardcap,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// End forgets the session of the request, if any, and expires its cookie.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) (string, error) {
	id, ok := m.WebSessionIDFromCookie(r)
	m.RemoveWebSessionCookie(w)
	if !ok {
		return "", nil
	}
	if m.BackendKVDBClient != nil {
		if _, err := m.BackendKVDBClient.Delete(r.Context(), m.WebSessionIDToKVDBKey(id)); err != nil {
			return id, fmt.Errorf("delete web session: %w", err)
		}
	}
	return id, nil
}

func (m *Manager) RemoveWebSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		MaxAge:   -1, // Delete
		HttpOnly: true,
		Secure:   !m.Conf.Insecure,
		SameSite: http.SameSiteLaxMode,
	})
}
