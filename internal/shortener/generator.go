package shortener

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"strings"
	"sync/atomic"
	"time"
)

const (
	MinGeneratedLength = 4
	MaxGeneratedLength = 10

	maxOwnerAttempts = 10

	base62Alphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	readableAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz"
)

// confusable lists characters a reader could mistake for another.
const confusable = "0O1Il5S8B"

// Generator derives short codes from a destination, its owner and the clock.
// Codes are likely, not guaranteed, to be unique; Repository.Create decides.
type Generator struct {
	now    func() time.Time
	digest func() hash.Hash
	seq    atomic.Uint64
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithClock overrides the time source mixed into the seed.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// WithDigest overrides the hash. A nil digest selects the arithmetic fallback.
func WithDigest(digest func() hash.Hash) GeneratorOption {
	return func(g *Generator) {
		g.digest = digest
	}
}

// NewGenerator returns a SHA-256 backed generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		now:    time.Now,
		digest: sha256.New,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate returns a code of exactly length characters.
func (g *Generator) Generate(url URL, owner UserID, length int) (Code, error) {
	if length < MinGeneratedLength || length > MaxGeneratedLength {
		return "", validationError(
			fmt.Sprintf("code length must be between %d and %d", MinGeneratedLength, MaxGeneratedLength), nil)
	}

	seed := fmt.Sprintf("%s|%s|%d|%d", url, owner, g.now().UnixNano(), g.seq.Add(1))

	if g.digest == nil {
		return Code(arithmeticCode(seed, length)), nil
	}

	h := g.digest()
	h.Write([]byte(seed))
	sum := h.Sum(nil)

	code := encodeBase62(binary.BigEndian.Uint64(sum[:8]), sum, length)
	code = replaceConfusable(code)

	return Code(fitLength(code, sum, length)), nil
}

// GenerateForUser regenerates around codes the owner already holds.
// A collision with another owner's code is returned as is.
func (g *Generator) GenerateForUser(url URL, owner UserID, length int, existing map[Code]UserID) (Code, error) {
	code, err := g.Generate(url, owner, length)
	if err != nil {
		return "", err
	}

	for attempt := range maxOwnerAttempts {
		holder, taken := existing[code]
		if !taken || holder != owner {
			return code, nil
		}

		code = perturb(code, attempt, length)
	}

	return code, nil
}

// IsValid checks an externally supplied code before lookup.
func (g *Generator) IsValid(code string) bool {
	return IsValidCode(code)
}

func encodeBase62(n uint64, sum []byte, length int) string {
	buf := make([]byte, 0, length)

	for n > 0 && len(buf) < length {
		buf = append(buf, base62Alphabet[n%62])
		n /= 62
	}

	for i := len(buf); len(buf) < length; i++ {
		buf = append(buf, base62Alphabet[sum[i%len(sum)]%62])
	}

	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf)
}

func replaceConfusable(code string) string {
	buf := []byte(code)

	for i, c := range buf {
		if strings.IndexByte(confusable, c) >= 0 {
			buf[i] = readableAlphabet[int(c)%len(readableAlphabet)]
		}
	}

	return string(buf)
}

func fitLength(code string, sum []byte, length int) string {
	if len(code) >= length {
		return code[:length]
	}

	buf := []byte(code)
	for i := len(buf); len(buf) < length; i++ {
		buf = append(buf, readableAlphabet[int(sum[i%len(sum)])%len(readableAlphabet)])
	}

	return string(buf)
}

// arithmeticCode is the digest-free path: a 31-multiplier string hash
// spread over the readable alphabet.
func arithmeticCode(seed string, length int) string {
	var h uint64
	for i := 0; i < len(seed); i++ {
		h = h*31 + uint64(seed[i])
	}

	n := uint64(len(readableAlphabet))
	buf := make([]byte, length)

	for i := range buf {
		buf[i] = readableAlphabet[(h+uint64(i)*31)%n]
	}

	return string(buf)
}

func perturb(code Code, attempt, length int) Code {
	n := len(readableAlphabet)

	if len(code) < length {
		return code + Code(readableAlphabet[attempt%n])
	}

	last := strings.IndexByte(readableAlphabet, code[len(code)-1])

	return code[:len(code)-1] + Code(readableAlphabet[(last+attempt+1+n)%n])
}
