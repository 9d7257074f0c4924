package shell

import (
	"context"
	"errors"
	"testing"
	"time"
)

func Test_NewSSHShell_Cases(t *testing.T) {
	tests := []struct {
		name    string
		config  SSHConfig
		wantErr bool
	}{
		{
			name:   "password auth",
			config: SSHConfig{Host: "192.168.1.20", User: "root", Auth: PasswordAuth{Password: "secret"}},
		},
		{
			name:   "key auth",
			config: SSHConfig{Host: "192.168.1.20", User: "u0_a123", Auth: KeyAuth{PrivateKeyPath: "/path/to/key"}},
		},
		{
			name:    "missing host",
			config:  SSHConfig{User: "root", Auth: AgentAuth{}},
			wantErr: true,
		},
		{
			name:    "missing user",
			config:  SSHConfig{Host: "device", Auth: AgentAuth{}},
			wantErr: true,
		},
		{
			name:    "missing auth",
			config:  SSHConfig{Host: "device", User: "root"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSSHShell(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSSHShell() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_NewSSHShell_Defaults(t *testing.T) {
	s, err := NewSSHShell(SSHConfig{Host: "device", User: "shell", Auth: AgentAuth{}, UseSu: true})
	if err != nil {
		t.Fatalf("NewSSHShell() error = %v", err)
	}
	if s.config.Port != 22 {
		t.Errorf("Port = %d, want 22", s.config.Port)
	}
	if s.config.CommandTimeout != 5*time.Second {
		t.Errorf("CommandTimeout = %v, want 5s", s.config.CommandTimeout)
	}
	if s.config.DialTimeout != 10*time.Second {
		t.Errorf("DialTimeout = %v, want 10s", s.config.DialTimeout)
	}
	if s.config.SuBinary != "su" {
		t.Errorf("SuBinary = %q, want %q", s.config.SuBinary, "su")
	}
	if s.Address() != "device:22" {
		t.Errorf("Address() = %q, want %q", s.Address(), "device:22")
	}
}

func Test_SSHShell_Wrap(t *testing.T) {
	plain, _ := NewSSHShell(SSHConfig{Host: "d", User: "root", Auth: AgentAuth{}})
	if got := plain.wrap("cat '/proc/version'"); got != "cat '/proc/version'" {
		t.Errorf("wrap() without su = %q", got)
	}

	su, _ := NewSSHShell(SSHConfig{Host: "d", User: "shell", Auth: AgentAuth{}, UseSu: true})
	want := `su -c 'cat '\''/proc/version'\'''`
	if got := su.wrap("cat '/proc/version'"); got != want {
		t.Errorf("wrap() with su = %q, want %q", got, want)
	}
}

func Test_SSHShell_RunWithoutConnect(t *testing.T) {
	s, _ := NewSSHShell(SSHConfig{Host: "d", User: "root", Auth: AgentAuth{}})
	if _, err := s.Run(context.Background(), "true"); !errors.Is(err, ErrShellClosed) {
		t.Errorf("Run() error = %v, want ErrShellClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func Test_SSHShell_KeyAuthMissingFile(t *testing.T) {
	s, _ := NewSSHShell(SSHConfig{
		Host: "127.0.0.1",
		User: "root",
		Auth: KeyAuth{PrivateKeyPath: "/nonexistent/rvkernel/id_ed25519"},
	})
	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("Connect() with missing key file succeeded, want error")
	}
}

func Test_splitLines_Cases(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"one\n", []string{"one"}},
		{"one\ntwo", []string{"one", "two"}},
		{"one\n\n", []string{"one", ""}},
	}
	for _, tt := range tests {
		if got := splitLines(tt.input); !equalLines(got, tt.want) {
			t.Errorf("splitLines(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
