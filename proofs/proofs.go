// Package proofs stores payment screenshots sent by customers.
package proofs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// ErrInvalidKey is returned for keys that do not belong to the store.
var ErrInvalidKey = errors.New("invalid proof key")

const maxDimension = 1600

// Store is a blob store for proof artifacts.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Normalize decodes an image, applies EXIF orientation, fits it within 1600x1600 and
// re-encodes it as JPEG.
func Normalize(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() > maxDimension || b.Dy() > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Saver normalizes screenshots and writes them under <orderID>/<sha256>.<ext>.
type Saver struct {
	store Store
	log   *zap.Logger
}

func NewSaver(store Store, log *zap.Logger) *Saver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Saver{store: store, log: log}
}

// SaveProof stores data and returns its key. Undecodable images are kept as sent.
func (s *Saver) SaveProof(ctx context.Context, orderID string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty proof")
	}
	ext := ".bin"
	if norm, err := Normalize(data); err == nil {
		data, contentType, ext = norm, "image/jpeg", ".jpg"
	} else {
		s.log.Debug("proof kept unnormalized", zap.String("order_id", orderID), zap.Error(err))
		if strings.HasPrefix(contentType, "application/pdf") {
			ext = ".pdf"
		}
	}
	sum := sha256.Sum256(data)
	key := path.Join(sanitize(orderID), hex.EncodeToString(sum[:])+ext)
	if err := s.store.Put(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("put proof: %w", err)
	}
	return key, nil
}

func sanitize(id string) string {
	id = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return '_'
	}, id)
	if id == "" {
		return "unknown"
	}
	return id
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return false
		}
	}
	return true
}
