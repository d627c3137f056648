package blob

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	valid := []string{
		"abc", "job-1", "JOB_2.v1", "job 1", "order#42", "задание-1", "a:b", "a/b", "..",
		strings.Repeat("a", MaxKeyLength),
	}
	for _, key := range valid {
		if err := ValidateKey(key); err != nil {
			t.Errorf("ValidateKey(%q) ошибка: %v", key, err)
		}
	}

	invalid := []string{"", "x\x00", "bad\xff", strings.Repeat("a", MaxKeyLength+1)}
	for _, key := range invalid {
		err := ValidateKey(key)
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateKey(%q) = %v, ожидается ErrInvalidKey", key, err)
		}
	}
}

func TestObjectName(t *testing.T) {
	if got := ObjectName("job-1"); got != "026ab639c21df8aa80e5789370a9db1b8b524b776fd8a0c2ba71efb377ecc7d9" {
		t.Errorf("ObjectName(job-1) = %s, ожидается sha256 в hex", got)
	}

	names := map[string]string{}
	for _, key := range []string{"job-1", "job 1", "задание", "../etc/passwd", "a/b", "A", "a"} {
		name := ObjectName(key)
		if len(name) != 64 {
			t.Errorf("ObjectName(%q): длина %d, ожидается 64", key, len(name))
		}
		if strings.Trim(name, "0123456789abcdef") != "" {
			t.Errorf("ObjectName(%q) = %q: недопустимые символы", key, name)
		}
		if prev, ok := names[name]; ok {
			t.Errorf("коллизия имён: %q и %q", prev, key)
		}
		names[name] = key
	}
}

func TestObjectError_Unwrap(t *testing.T) {
	err := &ObjectError{Op: "Open", Key: "job", Err: ErrNotFound}
	if !errors.Is(err, ErrNotFound) {
		t.Error("ObjectError должен разворачиваться в ErrNotFound")
	}
	if !strings.Contains(err.Error(), "Open") || !strings.Contains(err.Error(), "job") {
		t.Errorf("неожиданный текст ошибки: %s", err.Error())
	}
}
