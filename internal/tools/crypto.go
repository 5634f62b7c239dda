package tools

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"
)

type cryptoParams struct {
	Operation string `json:"operation"`
	Data      string `json:"data"`
	Key       string `json:"key"`
}

var cryptoHashes = map[string]func() hash.Hash{
	"hash_md5":      md5.New,
	"hash_sha1":     sha1.New,
	"hash_sha256":   sha256.New,
	"hash_sha512":   sha512.New,
	"hash_sha3_256": sha3.New256,
	"hash_sha3_512": sha3.New512,
}

// RegisterCrypto adds the hashing/encoding tool.
func RegisterCrypto(r *Registry) error {
	return r.Register(&Tool{
		Name: "crypto",
		Description: "Hashing and encoding operations: hash_md5, hash_sha1, hash_sha256, hash_sha512, hash_sha3_256, hash_sha3_512, " +
			"base64_encode, base64_decode, xor_encrypt_decrypt (repeating-key XOR, key required, result hex-encoded).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type": "string",
					"enum": []string{
						"hash_md5", "hash_sha1", "hash_sha256", "hash_sha512",
						"hash_sha3_256", "hash_sha3_512",
						"base64_encode", "base64_decode", "xor_encrypt_decrypt",
					},
					"description": "The operation to perform",
				},
				"data": map[string]any{
					"type":        "string",
					"description": "Input data. For base64_decode, a base64 string; for xor decryption, hex",
				},
				"key": map[string]any{
					"type":        "string",
					"description": "Key for xor_encrypt_decrypt",
				},
			},
			"required": []string{"operation", "data"},
		},
		Handler: handleCrypto,
	})
}

func handleCrypto(ctx context.Context, args map[string]any) (map[string]any, error) {
	var p cryptoParams
	if err := BindArgs(args, &p); err != nil {
		return nil, err
	}
	if p.Operation == "" {
		return nil, fmt.Errorf("operation is required")
	}

	if newHash, ok := cryptoHashes[p.Operation]; ok {
		h := newHash()
		h.Write([]byte(p.Data))
		return map[string]any{
			"operation": p.Operation,
			"digest":    hex.EncodeToString(h.Sum(nil)),
		}, nil
	}

	switch p.Operation {
	case "base64_encode":
		return map[string]any{
			"operation": p.Operation,
			"result":    base64.StdEncoding.EncodeToString([]byte(p.Data)),
		}, nil

	case "base64_decode":
		decoded, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		return map[string]any{
			"operation": p.Operation,
			"result":    string(decoded),
		}, nil

	case "xor_encrypt_decrypt":
		if p.Key == "" {
			return nil, fmt.Errorf("key is required for xor_encrypt_decrypt")
		}
		// Hex input is treated as ciphertext to decrypt; anything else
		// as plaintext to encrypt. XOR is symmetric so the operation is
		// the same either way.
		input := []byte(p.Data)
		fromHex := false
		if decoded, err := hex.DecodeString(p.Data); err == nil && len(p.Data) > 0 && len(p.Data)%2 == 0 {
			input = decoded
			fromHex = true
		}
		out := xorKeystream(input, []byte(p.Key))
		if fromHex {
			return map[string]any{
				"operation": p.Operation,
				"result":    string(out),
			}, nil
		}
		return map[string]any{
			"operation": p.Operation,
			"result":    hex.EncodeToString(out),
		}, nil
	}

	return nil, fmt.Errorf("unknown operation: %s", p.Operation)
}

func xorKeystream(data, key []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
