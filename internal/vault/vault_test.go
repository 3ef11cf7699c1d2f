package vault

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/iotest"
)

func mustKey(t *testing.T) Key {
	t.Helper()
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return k
}

func TestBuyMilkScenario(t *testing.T) {
	keyA := mustKey(t)
	keyB := mustKey(t)

	blob, err := Encrypt([]byte("Buy milk"), keyA)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	got, err := Decrypt(blob, keyA)
	if err != nil {
		t.Fatalf("Decrypt with key A failed: %v", err)
	}
	if string(got) != "Buy milk" {
		t.Errorf("Decrypt = %q, want %q", got, "Buy milk")
	}

	_, err = Decrypt(blob, keyB)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Decrypt with key B = %v, want ErrAuthenticationFailed", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := mustKey(t)

	payloads := [][]byte{
		nil,
		{},
		{0x00},
		[]byte("Buy milk"),
		bytes.Repeat([]byte{0xff}, 15),
		bytes.Repeat([]byte("abc"), 1000),
	}
	random := make([]byte, 1<<16)
	if _, err := rand.Read(random); err != nil {
		t.Fatalf("rand.Read failed: %v", err)
	}
	payloads = append(payloads, random)

	for _, p := range payloads {
		t.Run(fmt.Sprintf("len=%d", len(p)), func(t *testing.T) {
			blob, err := Encrypt(p, key)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if len(blob) != len(p)+Overhead {
				t.Errorf("blob length = %d, want %d", len(blob), len(p)+Overhead)
			}
			if len(p) > 4 && bytes.Contains(blob, p) {
				t.Error("blob contains plaintext")
			}

			got, err := Decrypt(blob, key)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if !bytes.Equal(got, p) {
				t.Errorf("Decrypt returned %d bytes, want %d", len(got), len(p))
			}
			if got == nil {
				t.Error("Decrypt returned nil slice on success")
			}
		})
	}
}

func TestNonceUniqueness(t *testing.T) {
	key := mustKey(t)
	const n = 10000

	seen := make(map[[NonceSize]byte]struct{}, n)
	for i := 0; i < n; i++ {
		blob, err := Encrypt([]byte("same plaintext"), key)
		if err != nil {
			t.Fatalf("Encrypt %d failed: %v", i, err)
		}
		var nonce [NonceSize]byte
		copy(nonce[:], blob[:NonceSize])
		if _, dup := seen[nonce]; dup {
			t.Fatalf("nonce reused after %d encryptions", i)
		}
		seen[nonce] = struct{}{}
	}
}

func TestSamePlaintextYieldsDistinctBlobs(t *testing.T) {
	key := mustKey(t)
	a, err := Encrypt([]byte("Buy milk"), key)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encrypt([]byte("Buy milk"), key)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestTamperDetection(t *testing.T) {
	key := mustKey(t)
	blob, err := Encrypt([]byte("Ship v1 before Friday"), key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Every bit of the blob: nonce, ciphertext and tag.
	for i := 0; i < len(blob); i++ {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), blob...)
			tampered[i] ^= 1 << bit

			got, err := Decrypt(tampered, key)
			if !errors.Is(err, ErrAuthenticationFailed) {
				t.Fatalf("byte %d bit %d: Decrypt = (%q, %v), want ErrAuthenticationFailed", i, bit, got, err)
			}
			if got != nil {
				t.Fatalf("byte %d bit %d: plaintext returned alongside error", i, bit)
			}
		}
	}
}

func TestTruncationAndExtensionDetected(t *testing.T) {
	key := mustKey(t)
	blob, err := Encrypt([]byte("Buy milk and eggs"), key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	tests := []struct {
		name string
		blob []byte
	}{
		{"drop last byte", blob[:len(blob)-1]},
		{"drop first ciphertext byte", append(append([]byte(nil), blob[:NonceSize]...), blob[NonceSize+1:]...)},
		{"append byte", append(append([]byte(nil), blob...), 0x00)},
		{"only nonce and tag", append(append([]byte(nil), blob[:NonceSize]...), blob[len(blob)-TagSize:]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.blob, key)
			if !errors.Is(err, ErrAuthenticationFailed) {
				t.Errorf("Decrypt = %v, want ErrAuthenticationFailed", err)
			}
		})
	}
}

func TestWrongKeyRejected(t *testing.T) {
	k1 := mustKey(t)
	k2 := k1
	k2[KeySize-1] ^= 0x01

	blob, err := Encrypt([]byte("sensitive"), k1)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := Decrypt(blob, k2); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Decrypt with wrong key = %v, want ErrAuthenticationFailed", err)
	}
}

func TestMalformedBlobRejected(t *testing.T) {
	key := mustKey(t)

	if _, err := Decrypt(nil, key); !errors.Is(err, ErrMalformed) {
		t.Errorf("Decrypt(nil) = %v, want ErrMalformed", err)
	}
	for n := 0; n < Overhead; n++ {
		blob := make([]byte, n)
		if _, err := Decrypt(blob, key); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decrypt(%d bytes) = %v, want ErrMalformed", n, err)
		}
	}

	// Exactly nonce+tag is structurally valid and fails authentication instead.
	if _, err := Decrypt(make([]byte, Overhead), key); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Decrypt(%d zero bytes) = %v, want ErrAuthenticationFailed", Overhead, err)
	}
}

func TestAssociatedDataBinding(t *testing.T) {
	key := mustKey(t)

	blob, err := EncryptWithAD([]byte("record body"), []byte("task-1"), key)
	if err != nil {
		t.Fatalf("EncryptWithAD failed: %v", err)
	}

	got, err := DecryptWithAD(blob, []byte("task-1"), key)
	if err != nil {
		t.Fatalf("DecryptWithAD failed: %v", err)
	}
	if string(got) != "record body" {
		t.Errorf("DecryptWithAD = %q", got)
	}

	for _, ad := range [][]byte{[]byte("task-2"), nil, []byte("task-1 ")} {
		if _, err := DecryptWithAD(blob, ad, key); !errors.Is(err, ErrAuthenticationFailed) {
			t.Errorf("DecryptWithAD(ad=%q) = %v, want ErrAuthenticationFailed", ad, err)
		}
	}
	if _, err := Decrypt(blob, key); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Decrypt without AD = %v, want ErrAuthenticationFailed", err)
	}
}

func TestRandomSourceUnavailable(t *testing.T) {
	key := mustKey(t)

	tests := []struct {
		name string
		s    *Sealer
	}{
		{"erroring reader", NewWithRand(iotest.ErrReader(errors.New("entropy pool closed")))},
		{"short reader", NewWithRand(bytes.NewReader(make([]byte, NonceSize-1)))},
		{"empty reader", NewWithRand(bytes.NewReader(nil))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := tt.s.Encrypt([]byte("Buy milk"), key)
			if !errors.Is(err, ErrRandomSourceUnavailable) {
				t.Errorf("Encrypt = %v, want ErrRandomSourceUnavailable", err)
			}
			if blob != nil {
				t.Error("blob returned alongside error")
			}
		})
	}
}

func TestSealerWithDeterministicRandUsesItsNonce(t *testing.T) {
	key := mustKey(t)
	nonce := bytes.Repeat([]byte{0xAB}, NonceSize)
	s := NewWithRand(bytes.NewReader(nonce))

	blob, err := s.Encrypt([]byte("x"), key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !bytes.Equal(blob[:NonceSize], nonce) {
		t.Errorf("blob nonce = %x, want %x", blob[:NonceSize], nonce)
	}
	got, err := New().Decrypt(blob, key)
	if err != nil || string(got) != "x" {
		t.Errorf("Decrypt = (%q, %v)", got, err)
	}
}

func TestCallerKeyUntouched(t *testing.T) {
	key := mustKey(t)
	orig := key

	blob, err := Encrypt([]byte("payload"), key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(blob, key); err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(blob[:3], key); err == nil {
		t.Fatal("expected error")
	}
	if key != orig {
		t.Error("caller's key was modified")
	}
}

func TestKeyZero(t *testing.T) {
	key := mustKey(t)
	key.Zero()
	if key != (Key{}) {
		t.Error("Zero left key material behind")
	}
}

func TestKeyFromBytes(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, KeySize)
	k, err := KeyFromBytes(raw)
	if err != nil {
		t.Fatalf("KeyFromBytes failed: %v", err)
	}
	if !bytes.Equal(k[:], raw) {
		t.Error("key bytes mismatch")
	}

	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := KeyFromBytes(make([]byte, n)); err == nil {
			t.Errorf("KeyFromBytes(%d bytes) should fail", n)
		}
	}
}

func TestConcurrentUse(t *testing.T) {
	key := mustKey(t)
	s := New()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				msg := []byte(fmt.Sprintf("worker %d message %d", g, i))
				blob, err := s.Encrypt(msg, key)
				if err != nil {
					errs <- err
					return
				}
				got, err := s.Decrypt(blob, key)
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(got, msg) {
					errs <- fmt.Errorf("worker %d: got %q want %q", g, got, msg)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
