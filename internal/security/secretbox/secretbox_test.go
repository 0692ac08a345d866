package secretbox

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	box, err := New("clave-de-prueba-suficientemente-larga")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []string{
		"",
		"a",
		"sl.B1234567890-un-access-token-de-dropbox",
		strings.Repeat("x", 8192),
		"unicode: ñandú 日本語 🗝️",
	}

	for _, pt := range cases {
		env, err := box.Encrypt(pt)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", pt, err)
		}
		if strings.Contains(env, pt) && pt != "" {
			t.Fatalf("el sobre contiene el plaintext")
		}
		got, err := box.Decrypt(env)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != pt {
			t.Fatalf("roundtrip: got %q, want %q", got, pt)
		}
	}
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	t.Parallel()

	box := NewEphemeral()
	a, _ := box.Encrypt("mismo plaintext")
	b, _ := box.Encrypt("mismo plaintext")
	if a == b {
		t.Fatal("dos Encrypt del mismo plaintext produjeron el mismo sobre")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	t.Parallel()

	box := NewEphemeral()
	env, err := box.Encrypt("token secreto")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	parts := strings.SplitN(env, "|", 2)
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decodificando ciphertext: %v", err)
	}

	// Flipear un bit en cada posición del ciphertext debe romper el tag.
	for i := range ct {
		mutated := make([]byte, len(ct))
		copy(mutated, ct)
		mutated[i] ^= 0x01

		bad := parts[0] + "|" + base64.StdEncoding.EncodeToString(mutated)
		if _, err := box.Decrypt(bad); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("byte %d: esperaba ErrDecrypt, got %v", i, err)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	t.Parallel()

	a, _ := New("clave-a")
	b, _ := New("clave-b")

	env, err := a.Encrypt("secreto")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := b.Decrypt(env); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("esperaba ErrDecrypt con otra clave, got %v", err)
	}
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	t.Parallel()

	box := NewEphemeral()
	bad := []string{
		"",
		"sin-separador",
		"|",
		"no-base64|tampoco",
		"QQ==|QQ==", // nonce de 1 byte
		base64.StdEncoding.EncodeToString([]byte("doce--bytes!")) + "|!!!",
	}
	for _, env := range bad {
		if _, err := box.Decrypt(env); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("Decrypt(%q): esperaba ErrDecrypt, got %v", env, err)
		}
	}
}

func TestDecryptLogsFailureStage(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	box := NewEphemeral().WithLogger(zap.New(core))

	secreto := "token super secreto"
	env, err := box.Encrypt(secreto)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	manipulado := strings.SplitN(env, "|", 2)
	nonceB64 := manipulado[0]

	// Una falla por cada etapa del descifrado.
	cases := map[string]string{
		"sin-separador":   "malformed_envelope",
		"!!!|" + nonceB64: "bad_nonce",
		nonceB64 + "|!!!": "bad_ciphertext_encoding",
		nonceB64 + "|" + base64.StdEncoding.EncodeToString([]byte("basura")): "auth_failed",
	}

	for bad, stage := range cases {
		before := logs.Len()
		if _, err := box.Decrypt(bad); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("Decrypt(%q): esperaba ErrDecrypt, got %v", bad, err)
		}
		nuevos := logs.All()[before:]
		if len(nuevos) != 1 {
			t.Fatalf("etapa %q: esperaba 1 entrada de log, got %d", stage, len(nuevos))
		}
		entry := nuevos[0]
		if entry.Level != zapcore.DebugLevel {
			t.Fatalf("etapa %q: nivel %v, esperaba debug", stage, entry.Level)
		}
		if got := entry.ContextMap()["stage"]; got != stage {
			t.Fatalf("stage logueado = %v, esperaba %q", got, stage)
		}
	}

	// Nada del material cifrado ni del secreto puede tocar el log.
	for _, entry := range logs.All() {
		linea := entry.Message
		for _, f := range entry.Context {
			linea += " " + f.Key + "=" + f.String
		}
		if strings.Contains(linea, secreto) || strings.Contains(linea, env) {
			t.Fatalf("el log contiene material del token: %q", linea)
		}
	}
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	for _, secret := range []string{"", "   "} {
		if _, err := New(secret); !errors.Is(err, ErrNoKey) {
			t.Fatalf("New(%q): esperaba ErrNoKey, got %v", secret, err)
		}
	}
}
