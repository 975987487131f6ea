package watcherproc

import (
	"testing"

	"github.com/argus-dev/argus/internal/apierr"
)

func TestOptionsSetDefaults(t *testing.T) {
	o := Options{}
	o.setDefaults()

	if o.Source != "cdp" {
		t.Errorf("Source = %q, want cdp", o.Source)
	}
	if o.ListenHost != "127.0.0.1" {
		t.Errorf("ListenHost = %q, want 127.0.0.1", o.ListenHost)
	}
	if o.LogCapacity != 50000 {
		t.Errorf("LogCapacity = %d, want 50000", o.LogCapacity)
	}
	if o.NetCapacity != 5000 {
		t.Errorf("NetCapacity = %d, want 5000", o.NetCapacity)
	}
	if o.NativeIn != nil || o.NativeOut != nil {
		t.Errorf("NativeIn/NativeOut should stay nil for source=cdp")
	}
}

func TestOptionsSetDefaultsExtensionSource(t *testing.T) {
	o := Options{Source: "extension"}
	o.setDefaults()

	if o.NativeIn == nil || o.NativeOut == nil {
		t.Errorf("NativeIn/NativeOut should default to os.Stdin/os.Stdout for source=extension")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
		code    apierr.Code
	}{
		{"cdp requires host/port", Options{Source: "cdp"}, true, apierr.CodeInvalidBody},
		{"cdp ok", Options{Source: "cdp", ChromeHost: "localhost", ChromePort: 9222}, false, ""},
		{"extension ok", Options{Source: "extension"}, false, ""},
		{"unknown source", Options{Source: "bogus"}, true, apierr.CodeInvalidBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr && err == nil {
				t.Fatalf("validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("validate() = %v, want nil", err)
			}
			if tt.wantErr && apierr.CodeOf(err) != tt.code {
				t.Errorf("CodeOf(err) = %v, want %v", apierr.CodeOf(err), tt.code)
			}
		})
	}
}
