package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO_HOST", "db.internal")
	t.Setenv("FOO_PORT", "5432")

	got := string(ExpandEnv([]byte("host: ${FOO_HOST}:${FOO_PORT}\nmissing: $DOES_NOT_EXIST_XYZ")))
	want := "host: db.internal:5432\nmissing: "
	if got != want {
		t.Fatalf("ExpandEnv() = %q, want %q", got, want)
	}
}
