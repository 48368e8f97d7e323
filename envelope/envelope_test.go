package envelope

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"success":false,"message":"expired","messageCode":"TOKEN-E-002","data":null}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if env.Success {
		t.Error("expected success=false")
	}
	if env.MessageCode != CodeTokenExpired {
		t.Errorf("expected messageCode %s, got %s", CodeTokenExpired, env.MessageCode)
	}
	if env.Message != "expired" {
		t.Errorf("unexpected message: %s", env.Message)
	}
}

func TestDecode_EmptyBody(t *testing.T) {
	_, err := Decode(nil)
	if !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	if _, err := Decode([]byte("<html>bad gateway</html>")); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestDecodeData(t *testing.T) {
	raw, err := Decode([]byte(`{"success":true,"message":"ok","messageCode":"","data":{"accessToken":"abc","tokenType":"Bearer","expiresIn":60}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	env, err := DecodeData[RefreshData](raw)
	if err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}

	if !env.Success {
		t.Error("expected success=true")
	}
	if env.Data.AccessToken != "abc" {
		t.Errorf("expected access token abc, got %q", env.Data.AccessToken)
	}
	if env.Data.ExpiresIn != 60 {
		t.Errorf("expected expiresIn 60, got %d", env.Data.ExpiresIn)
	}
}

func TestDecodeData_NullPayload(t *testing.T) {
	raw, err := Decode([]byte(`{"success":true,"message":"","messageCode":"","data":null}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	env, err := DecodeData[RefreshData](raw)
	if err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}
	if env.Data.AccessToken != "" {
		t.Errorf("expected zero payload, got %+v", env.Data)
	}
}

func TestDecodeData_Nil(t *testing.T) {
	if _, err := DecodeData[RefreshData](nil); err == nil {
		t.Fatal("expected error for nil envelope")
	}
}

func TestParseAuthErrorCode(t *testing.T) {
	tests := []struct {
		code   string
		want   AuthErrorCode
		wantOK bool
	}{
		{code: "TOKEN-E-001", want: AuthMissing, wantOK: true},
		{code: "TOKEN-E-002", want: AuthExpired, wantOK: true},
		{code: "TOKEN-E-003", want: AuthInvalid, wantOK: true},
		{code: "", wantOK: false},
		{code: "TOKEN-E-999", wantOK: false},
		{code: "token-e-002", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := ParseAuthErrorCode(tt.code)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if ok && got.MessageCode() != tt.code {
				t.Errorf("expected round trip to %s, got %s", tt.code, got.MessageCode())
			}
		})
	}
}

func TestAuthErrorCode_String(t *testing.T) {
	if AuthExpired.String() != "EXPIRED" {
		t.Errorf("unexpected string: %s", AuthExpired.String())
	}
	if AuthErrorCode(0).String() != "UNKNOWN" {
		t.Errorf("unexpected string for zero code: %s", AuthErrorCode(0).String())
	}
}
