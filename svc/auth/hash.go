package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const maxPinLength = 1024

const (
	ModeSHA256   = "sha256"
	ModeArgon2id = "argon2id"
)

const (
	argon2Prefix = "$argon2id$"
	saltLength   = 16
	keyLength    = 32
)

var ErrPinTooLong = errors.New("pin too long")

type Argon2Params struct {
	Time        uint32
	Memory      uint32
	Parallelism uint8
}

// Hasher produces and checks PIN digests.
//
// In sha256 mode the digest is the lowercase hex SHA-256 of the PIN's UTF-8 bytes, with no
// salt, so identical PINs share a digest across pastes. This keeps stored hashes compatible
// with existing databases. In argon2id mode every digest gets a fresh random salt and is
// stored as a PHC string. Verify accepts either format regardless of the configured mode.
type Hasher struct {
	mode   string
	params Argon2Params
	sem    *semaphore.Weighted
}

func NewHasher(mode string, params Argon2Params, concurrency int) (*Hasher, error) {
	switch mode {
	case ModeSHA256:
	case ModeArgon2id:
		if params.Time == 0 || params.Time > 100 {
			return nil, errors.New("iterations must be between 1 and 100")
		}
		if params.Memory < 1024 || params.Memory > 2*1024*1024 {
			return nil, errors.New("memory must be between 1024 and 2097152 KiB")
		}
		if params.Parallelism == 0 || params.Parallelism > 128 {
			return nil, errors.New("parallelism must be between 1 and 128")
		}
	default:
		return nil, fmt.Errorf("unknown pin hash mode %q", mode)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Hasher{
		mode:   mode,
		params: params,
		sem:    semaphore.NewWeighted(int64(concurrency)),
	}, nil
}

func (h *Hasher) Mode() string { return h.mode }

// Hash returns the digest to store for pin. pin must be non-empty.
func (h *Hasher) Hash(ctx context.Context, pin string) (string, error) {
	if pin == "" {
		return "", errors.New("empty pin")
	}
	if len(pin) > maxPinLength {
		return "", ErrPinTooLong
	}
	if h.mode == ModeSHA256 {
		return SHA256Hex(pin), nil
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "read salt")
	}
	key, err := h.argon2Key(ctx, pin, salt, h.params, keyLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify reports whether pin matches encoded. An empty pin never matches.
func (h *Hasher) Verify(ctx context.Context, pin, encoded string) (bool, error) {
	if pin == "" || encoded == "" || len(pin) > maxPinLength {
		return false, nil
	}
	if !strings.HasPrefix(encoded, argon2Prefix) {
		want := SHA256Hex(pin)
		return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(encoded))) == 1, nil
	}
	params, salt, stored, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	key, err := h.argon2Key(ctx, pin, salt, params, uint32(len(stored)))
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(key, stored) == 1, nil
}

func (h *Hasher) argon2Key(ctx context.Context, pin string, salt []byte, p Argon2Params, n uint32) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "wait for hasher slot")
	}
	defer h.sem.Release(1)
	return argon2.IDKey([]byte(pin), salt, p.Time, p.Memory, p.Parallelism, n), nil
}

func decodeArgon2(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errors.New("malformed argon2id hash")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, errors.New("unsupported argon2 version")
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return p, nil, nil, errors.Wrap(err, "parse argon2 params")
	}
	if p.Memory > 2*1024*1024 || p.Time == 0 || p.Time > 1000 || p.Parallelism == 0 {
		return p, nil, nil, errors.New("argon2 params out of range")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, errors.New("bad argon2 salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > 256 {
		return p, nil, nil, errors.New("bad argon2 digest")
	}
	return p, salt, key, nil
}

func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
