package tools

import (
	"context"
	"testing"
)

func cryptoDispatch(t *testing.T, argsJSON string) Result {
	t.Helper()
	r := newTestRegistry(t)
	if err := RegisterCrypto(r); err != nil {
		t.Fatal(err)
	}
	return r.Dispatch(context.Background(), "crypto", argsJSON)
}

func TestCrypto_Hashes(t *testing.T) {
	tests := []struct {
		operation string
		want      string
	}{
		// Digests of "abc".
		{"hash_md5", "900150983cd24fb0d6963f7d28e17f72"},
		{"hash_sha1", "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{"hash_sha256", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"hash_sha3_256", "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"},
	}

	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			res := cryptoDispatch(t, `{"operation":"`+tt.operation+`","data":"abc"}`)
			if !res.Success {
				t.Fatalf("dispatch failed: %s", res.Error)
			}
			if res.Fields["digest"] != tt.want {
				t.Errorf("digest = %v, want %s", res.Fields["digest"], tt.want)
			}
		})
	}
}

func TestCrypto_Sha512AndSha3_512Lengths(t *testing.T) {
	for _, op := range []string{"hash_sha512", "hash_sha3_512"} {
		res := cryptoDispatch(t, `{"operation":"`+op+`","data":"abc"}`)
		if !res.Success {
			t.Fatalf("%s failed: %s", op, res.Error)
		}
		if len(res.Fields["digest"].(string)) != 128 {
			t.Errorf("%s digest length = %d, want 128 hex chars", op, len(res.Fields["digest"].(string)))
		}
	}
}

func TestCrypto_Base64RoundTrip(t *testing.T) {
	res := cryptoDispatch(t, `{"operation":"base64_encode","data":"hello"}`)
	if !res.Success {
		t.Fatal(res.Error)
	}
	if res.Fields["result"] != "aGVsbG8=" {
		t.Errorf("encoded = %v", res.Fields["result"])
	}

	res = cryptoDispatch(t, `{"operation":"base64_decode","data":"aGVsbG8="}`)
	if !res.Success {
		t.Fatal(res.Error)
	}
	if res.Fields["result"] != "hello" {
		t.Errorf("decoded = %v", res.Fields["result"])
	}
}

func TestCrypto_Base64DecodeInvalid(t *testing.T) {
	res := cryptoDispatch(t, `{"operation":"base64_decode","data":"!!!not-base64!!!"}`)
	if res.Success {
		t.Error("invalid base64 should fail")
	}
}

func TestCrypto_XorRoundTrip(t *testing.T) {
	enc := cryptoDispatch(t, `{"operation":"xor_encrypt_decrypt","data":"secret message","key":"k"}`)
	if !enc.Success {
		t.Fatal(enc.Error)
	}
	cipherHex := enc.Fields["result"].(string)

	dec := cryptoDispatch(t, `{"operation":"xor_encrypt_decrypt","data":"`+cipherHex+`","key":"k"}`)
	if !dec.Success {
		t.Fatal(dec.Error)
	}
	if dec.Fields["result"] != "secret message" {
		t.Errorf("round trip = %v", dec.Fields["result"])
	}
}

func TestCrypto_XorRequiresKey(t *testing.T) {
	res := cryptoDispatch(t, `{"operation":"xor_encrypt_decrypt","data":"abc"}`)
	if res.Success {
		t.Error("missing key should fail")
	}
}

func TestCrypto_UnknownOperation(t *testing.T) {
	res := cryptoDispatch(t, `{"operation":"rot13","data":"abc"}`)
	if res.Success {
		t.Error("unknown operation should fail")
	}
}
