package der

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_WriteGeneralizedTime(t *testing.T) {
	when := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	buf := make([]byte, GeneralizedTimeLen)

	err := WriteGeneralizedTime(when, buf, 0)
	require.NoError(t, err)

	expected := []byte{0x18, 0x0F, '2', '0', '2', '4', '0', '6', '1', '5', '1', '2', '0', '0', '0', '0', 'Z'}
	require.Equal(t, expected, buf)
}

func Test_WriteGeneralizedTime_NonUTCInputIsNormalized(t *testing.T) {
	loc := time.FixedZone("test", 3600)
	when := time.Date(2024, 6, 15, 13, 0, 0, 0, loc) // 12:00 UTC
	buf := make([]byte, GeneralizedTimeLen)

	require.NoError(t, WriteGeneralizedTime(when, buf, 0))
	require.Equal(t, "20240615120000Z", string(buf[2:]))
}

func Test_WriteGeneralizedTime_AtOffset(t *testing.T) {
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	buf := make([]byte, 5+GeneralizedTimeLen)
	for i := range buf[:5] {
		buf[i] = 0xAA
	}

	require.NoError(t, WriteGeneralizedTime(when, buf, 5))
	require.Equal(t, []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA}, buf[:5])
	require.Equal(t, "20240101000000Z", string(buf[7:]))
}

func Test_WriteGeneralizedTime_BufferTooSmall(t *testing.T) {
	buf := make([]byte, 10)
	err := WriteGeneralizedTime(time.Now(), buf, 0)
	require.Error(t, err)

	err = WriteGeneralizedTime(time.Now(), buf, -1)
	require.Error(t, err)
}
