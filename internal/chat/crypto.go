package chat

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// KeySize is the length in bytes of a pairwise symmetric key (AES-256).
const KeySize = 32

// aesCTRTransform runs the deterministic AES-256-CTR keystream over in,
// writing the result to out (len(out) must equal len(in), n <= MaxTextLen).
// The same function encrypts and decrypts: XOR with a keystream is its own
// inverse.
//
// The counter-block IV commits all four of from, to, nonce, and msg_id so
// that two nodes that agree on key and every header field always derive
// the same keystream, per the explicit derivation this protocol commits
// to: from(2, BE) || to(2, BE) || nonce(4, BE) || msg_id(4, BE) || zero-pad
// to the 16-byte AES block size.
func aesCTRTransform(key []byte, from, to NodeAddr, nonce, msgID uint32, in, out []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("aes ctr transform: key length %d: %w", len(key), ErrInvalidKey)
	}
	if len(in) != len(out) {
		return fmt.Errorf("aes ctr transform: in/out length mismatch (%d != %d): %w",
			len(in), len(out), ErrDecryptFailed)
	}
	if len(in) > MaxTextLen {
		return fmt.Errorf("aes ctr transform: input length %d exceeds %d: %w",
			len(in), MaxTextLen, ErrTextTooLong)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("aes ctr transform: new cipher: %w", err)
	}

	var iv [aes.BlockSize]byte
	binary.BigEndian.PutUint16(iv[0:2], uint16(from))
	binary.BigEndian.PutUint16(iv[2:4], uint16(to))
	binary.BigEndian.PutUint32(iv[4:8], nonce)
	binary.BigEndian.PutUint32(iv[8:12], msgID)
	// iv[12:16] stays zero: reserved for future extension of the counter space.

	stream := cipher.NewCTR(block, iv[:])
	stream.XORKeyStream(out, in)

	return nil
}

// EncryptText encrypts plaintext into the packet's text buffer and sets
// TextLen, using the deterministic AES-256-CTR transform keyed by key and
// addressed by (from, to, nonce, msgID).
func EncryptText(key []byte, from, to NodeAddr, nonce, msgID uint32, plaintext []byte) ([MaxTextLen]byte, uint16, error) {
	var out [MaxTextLen]byte
	if len(plaintext) > MaxTextLen {
		return out, 0, ErrTextTooLong
	}
	if err := aesCTRTransform(key, from, to, nonce, msgID, plaintext, out[:len(plaintext)]); err != nil {
		return out, 0, err
	}
	return out, uint16(len(plaintext)), nil
}

// DecryptText recovers plaintext from a SecureChat packet's ciphertext
// using the same deterministic transform (encrypt and decrypt are the same
// operation for a counter-mode stream cipher).
func DecryptText(key []byte, from, to NodeAddr, nonce, msgID uint32, ciphertext []byte) ([]byte, error) {
	out := make([]byte, len(ciphertext))
	if err := aesCTRTransform(key, from, to, nonce, msgID, ciphertext, out); err != nil {
		return nil, err
	}
	return out, nil
}
