package password

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if !Verify("correct horse", encoded) {
		t.Fatal("expected password to verify")
	}
	if Verify("wrong horse", encoded) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	for _, encoded := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$a$b", "$argon2id$v=19$m=x,t=1,p=1$a$b"} {
		if Verify("pw", encoded) {
			t.Fatalf("expected %q to be rejected", encoded)
		}
	}
}
