package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testForm struct {
	Name  string `form:"name" validate:"notblank"`
	Email string `json:"email" validate:"required,email"`
	Phone string `form:"phone" validate:"omitempty,msisdn_ke"`
}

func TestValidator_Struct(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name string
		form testForm
		want map[string]string
	}{
		{name: "valid", form: testForm{Name: "Njeri", Email: "n@b.com", Phone: "254712345678"}},
		{
			name: "blank and missing",
			form: testForm{Name: "  "},
			want: map[string]string{"name": notBlankText, "email": requiredText},
		},
		{
			name: "bad phone",
			form: testForm{Name: "Njeri", Email: "n@b.com", Phone: "0712345678"},
			want: map[string]string{"phone": msisdnText},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.form)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.want, vErr.FieldMap())
		})
	}
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Njeri", CleanString("  Njeri \n"))
	assert.Equal(t, "n@b.com", CleanString(" N@B.com ", true))
}

type accountForm struct {
	Name     string `form:"name"`
	Email    string `form:"email"`
	Password string `form:"password" validate:"pwdtoosim=Name Email"`
}

func TestValidator_PasswordSimilarity(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		form    accountForm
		wantErr bool
	}{
		{name: "unrelated", form: accountForm{Name: "Njeri", Email: "n@b.com", Password: "kx93!mpQ"}},
		{name: "empty password", form: accountForm{Name: "Njeri", Email: "n@b.com"}},
		{name: "no attributes", form: accountForm{Password: "Wanjiru1!"}},
		{name: "like the name", form: accountForm{Name: "Wanjiru", Email: "w@b.com", Password: "Wanjiru1!"}, wantErr: true},
		{name: "like the email user", form: accountForm{Name: "Njeri", Email: "kamau.j@b.com", Password: "kamauj22"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.form)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, map[string]string{"password": pwdAttrSimText}, vErr.FieldMap())
		})
	}
}
