// Package secretbox cifra y descifra secretos pequeños (tokens OAuth)
// con AES-256-GCM.
//
// El formato del sobre es estable: base64(nonce) + "|" + base64(ciphertext).
// Cada Encrypt usa un nonce fresco de 96 bits, así el mismo plaintext
// produce siempre sobres distintos.
//
// Decrypt retorna SIEMPRE el mismo ErrDecrypt ante cualquier falla
// (sobre malformado, nonce corto, tag inválido). No dar pistas de qué
// parte falló evita convertir el descifrado en un oráculo. La etapa
// que falló queda solo en el log a nivel debug, nunca el sobre ni el
// plaintext.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"

	"github.com/dropDatabas3/backvault/internal/observability/logger"
)

// ErrDecrypt es el único error que expone Decrypt.
var ErrDecrypt = errors.New("secretbox: decryption failed")

// ErrNoKey indica que se intentó crear un Box sin clave.
var ErrNoKey = errors.New("secretbox: missing encryption key")

const (
	keySize   = 32 // AES-256
	nonceSize = 12 // GCM estándar, 96 bits
	hkdfInfo  = "backvault/secretbox/v1"
)

// Box cifra y descifra con una clave fija derivada del secreto maestro.
type Box struct {
	aead cipher.AEAD
	log  *zap.Logger
}

// New crea un Box a partir del secreto maestro (ENCRYPTION_KEY).
// La clave AES se deriva con HKDF-SHA256, así el secreto puede ser
// cualquier string razonablemente largo, no hace falta que sean
// exactamente 32 bytes.
func New(secret string) (*Box, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoKey
	}

	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("secretbox: derivando clave: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: creando cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretbox: creando GCM: %w", err)
	}

	return &Box{aead: aead, log: logger.Named("secretbox")}, nil
}

// WithLogger reemplaza el logger del Box. Hook para tests.
func (b *Box) WithLogger(l *zap.Logger) *Box {
	b.log = l
	return b
}

// NewEphemeral crea un Box con una clave aleatoria.
// Solo para dev y tests: los sobres no sobreviven al proceso.
func NewEphemeral() *Box {
	raw := make([]byte, keySize)
	if _, err := rand.Read(raw); err != nil {
		panic("secretbox: sin entropía: " + err.Error())
	}
	b, err := New(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		panic("secretbox: " + err.Error())
	}
	return b
}

// Encrypt cifra el plaintext y retorna el sobre base64(nonce)|base64(ct).
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secretbox: generando nonce: %w", err)
	}

	ct := b.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(nonce) + "|" +
		base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt abre un sobre producido por Encrypt.
// Cualquier falla retorna ErrDecrypt, sin distinguir la causa; la
// etapa va al log de debug para poder diagnosticar rotación de clave
// vs. registro corrupto.
func (b *Box) Decrypt(envelope string) (string, error) {
	parts := strings.SplitN(envelope, "|", 2)
	if len(parts) != 2 {
		return "", b.failDebug("malformed_envelope")
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", b.failDebug("bad_nonce")
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", b.failDebug("bad_ciphertext_encoding")
	}

	pt, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", b.failDebug("auth_failed")
	}
	return string(pt), nil
}

// failDebug registra la etapa que falló y retorna el ErrDecrypt
// uniforme. Nunca loguea el sobre ni material del token.
func (b *Box) failDebug(stage string) error {
	if b.log != nil {
		b.log.Debug("decryption failed", logger.String("stage", stage))
	}
	return ErrDecrypt
}
