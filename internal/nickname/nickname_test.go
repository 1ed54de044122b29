package nickname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trims", in: "  동글이 ", want: "동글이"},
		{name: "composes jamo", in: "\u1103\u1169\u11bc\u1100\u1173\u11af", want: "동글"},
		{name: "drops zero width", in: "동\u200b글", want: "동글"},
		{name: "drops hangul filler", in: "\u3164동글", want: "동글"},
		{name: "keeps latin", in: "Dong9", want: "Dong9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{name: "hangul", in: "동글이"},
		{name: "mixed", in: "동글Dong12"},
		{name: "min length", in: "동글"},
		{name: "max length", in: "가나다라마바사아자차카타"},
		{name: "empty", in: "", wantErr: ErrEmpty},
		{name: "too short", in: "동", wantErr: ErrLength},
		{name: "too long", in: "가나다라마바사아자차카타파", wantErr: ErrLength},
		{name: "space", in: "동글 이", wantErr: ErrCharacters},
		{name: "symbol", in: "동글!", wantErr: ErrCharacters},
		{name: "emoji", in: "동글😀", wantErr: ErrCharacters},
		{name: "reserved", in: "관리자", wantErr: ErrReserved},
		{name: "reserved any case", in: "Admin", wantErr: ErrReserved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClean(t *testing.T) {
	got, err := Clean(" 동\u200b글이 ")
	assert.NoError(t, err)
	assert.Equal(t, "동글이", got)

	_, err = Clean("\u200b")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "닉네임은 2~12자여야 합니다.", Message(ErrLength))
	assert.Equal(t, "닉네임을 확인할 수 없습니다.", Message(nil))
}
