package models

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"1500", 150000, false},
		{"1500.5", 150050, false},
		{"1,500.50", 150050, false},
		{"0.05", 5, false},
		{".5", 50, false},
		{"-20", -2000, false},
		{"", 0, true},
		{"abc", 0, true},
		{"1.234", 0, true},
		{"1.", 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney_Format(t *testing.T) {
	assert.Equal(t, "KSh 0.00", Money(0).Format("KSh"))
	assert.Equal(t, "KSh 1,234.50", Money(123450).Format("KSh"))
	assert.Equal(t, "KSh 1,234,567.05", Money(123456705).Format("KSh"))
	assert.Equal(t, "KSh -999.99", Money(-99999).Format("KSh"))
	assert.Equal(t, "12.30", Money(1230).String())
}

func TestMoney_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Money{"amount": 150050})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 1500.5}`, string(b))
}

func TestDate_ScanAndValue(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2025-03-07"))
	assert.Equal(t, "2025-03-07", d.String())

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-07", v)

	require.NoError(t, d.Scan([]byte("2024-12-31 00:00:00")))
	assert.Equal(t, "2024-12-31", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
	v, err = d.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Error(t, d.Scan(42))
}

func TestNextStudentNumber(t *testing.T) {
	assert.Equal(t, "STU001", NextStudentNumber(""))
	assert.Equal(t, "STU002", NextStudentNumber("STU001"))
	assert.Equal(t, "STU100", NextStudentNumber("STU099"))
	assert.Equal(t, "STU1000", NextStudentNumber("STU999"))
	assert.Equal(t, "STU001", NextStudentNumber("ADM-17"))
	assert.Equal(t, "STU001", NextStudentNumber("STUx"))
}

func TestUser_Permissions(t *testing.T) {
	admin := &User{Role: RoleAdmin}
	accountant := &User{Role: RoleAccountant}
	viewer := &User{Role: RoleViewer}

	assert.True(t, admin.HasPermission(PermDelete))
	assert.True(t, admin.HasPermission(PermManageUsers))
	assert.True(t, accountant.HasPermission(PermEdit))
	assert.False(t, accountant.HasPermission(PermDelete))
	assert.True(t, viewer.HasPermission(PermView))
	assert.False(t, viewer.HasPermission(PermCreate))

	var nobody *User
	assert.False(t, nobody.HasPermission(PermView))
	assert.False(t, (&User{Role: "janitor"}).HasPermission(PermView))
}

func TestUser_Password(t *testing.T) {
	u := &User{Username: "bursar"}
	require.Error(t, u.SetPassword("short"))
	require.NoError(t, u.SetPassword("s3cret-pass"))

	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.True(t, u.CheckPassword("s3cret-pass"))
	assert.False(t, u.CheckPassword("wrong-pass"))
}

func TestParseEnums(t *testing.T) {
	_, err := ParseRole("accountant")
	assert.NoError(t, err)
	_, err = ParseRole("root")
	assert.Error(t, err)

	term, err := ParseTerm("Term 2")
	require.NoError(t, err)
	assert.Equal(t, Term2, term)
	_, err = ParseTerm("Term 4")
	assert.Error(t, err)

	m, err := ParsePaymentMethod("M-Pesa")
	require.NoError(t, err)
	assert.Equal(t, MethodMPesa, m)
	_, err = ParsePaymentMethod("Bitcoin")
	assert.Error(t, err)
}

func TestNewReceiptNumber(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	rcp, err := NewReceiptNumber(now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^RCP-20250115-[0-9A-F]{6}$`), rcp)
}
