package message

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
	"github.com/drblury/fixflow/internal/runtime/fields"
)

var (
	field1 = fields.NewStringField(1, "Field1")
	field2 = fields.NewStringField(2, "Field2")
	field3 = fields.NewStringField(3, "Field3")
	field5 = fields.NewStringField(5, "Field5")
)

func interleaved() *Message {
	return NewBuilder().
		Add(field1.With("abc1")).
		Add(field2.With("def2")).
		Add(field3.With("ghi3")).
		Add(field2.With("jkl4")).
		Add(field3.With("mno5")).
		Add(field1.With("pqr6")).
		Add(field3.With("stu7")).
		Add(field1.With("vwx8")).
		Add(field2.With("yz90")).
		Freeze()
}

func TestRepeatedTagsKeepInsertionOrder(t *testing.T) {
	msg := interleaved()

	tests := []struct {
		field fields.Field[string]
		index int
		want  string
	}{
		{field1, 0, "abc1"},
		{field1, 1, "pqr6"},
		{field1, 2, "vwx8"},
		{field2, 0, "def2"},
		{field2, 1, "jkl4"},
		{field2, 2, "yz90"},
		{field3, 0, "ghi3"},
		{field3, 1, "mno5"},
		{field3, 2, "stu7"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s[%d]", tt.field.Name(), tt.index), func(t *testing.T) {
			got, err := GetAt(msg, tt.field, tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	first, err := Get(msg, field2)
	require.NoError(t, err)
	assert.Equal(t, "def2", first)
}

func TestAbsentTag(t *testing.T) {
	msg := interleaved()

	_, err := GetAt(msg, field5, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrTagAbsent)
	assert.NotErrorIs(t, err, errspkg.ErrIndexOutOfRange)

	_, err = msg.TagValue(5)
	assert.ErrorIs(t, err, errspkg.ErrTagAbsent)
	assert.False(t, msg.Has(5))
}

func TestIndexOutOfRange(t *testing.T) {
	msg := interleaved()

	for _, index := range []int{3, 100, -1} {
		_, err := msg.TagValueAt(1, index)
		require.Error(t, err)
		assert.ErrorIs(t, err, errspkg.ErrIndexOutOfRange)
		assert.NotErrorIs(t, err, errspkg.ErrTagAbsent)

		var fieldErr *errspkg.FieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, 3, fieldErr.Count)
		assert.Equal(t, index, fieldErr.Index)
	}
}

func TestTypeMismatch(t *testing.T) {
	seqAsString := fields.NewStringField(34, "MsgSeqNumText")
	msg := NewBuilder().Add(fields.MsgSeqNum.With(12)).Freeze()

	got, err := Get(msg, seqAsString)
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrTypeMismatch)
	assert.Empty(t, got)

	var fieldErr *errspkg.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "string", fieldErr.Want)
	assert.Equal(t, "int", fieldErr.Got)

	// the stored value is untouched
	seq, err := Get(msg, fields.MsgSeqNum)
	require.NoError(t, err)
	assert.Equal(t, int64(12), seq)
}

func TestZeroFieldIsTypeMismatch(t *testing.T) {
	msg := NewBuilder().AddTagValue(0, fields.StringValue("x")).Freeze()

	var zero fields.Field[string]
	_, err := Get(msg, zero)
	require.ErrorIs(t, err, errspkg.ErrTypeMismatch)

	_, ok, err := Find(msg, zero)
	assert.False(t, ok)
	assert.ErrorIs(t, err, errspkg.ErrTypeMismatch)
}

func TestUntypedLookupReturnsStoredValue(t *testing.T) {
	msg := NewBuilder().
		AddTagValue(20001, fields.BytesValue([]byte{0x00, 0x01})).
		AddTagValue(20001, fields.IntValue(9)).
		Freeze()

	v, err := msg.TagValueAt(20001, 1)
	require.NoError(t, err)
	n, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(9), n)
}

func TestFind(t *testing.T) {
	msg := NewBuilder().Add(fields.MsgType.With("D"), fields.MsgSeqNum.With(3)).Freeze()

	v, ok, err := Find(msg, fields.MsgType)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "D", v)

	_, ok, err = Find(msg, fields.SenderSubID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Find(msg, fields.NewBoolField(34, "Wrong"))
	assert.ErrorIs(t, err, errspkg.ErrTypeMismatch)
	assert.False(t, ok)
}

func TestGetAll(t *testing.T) {
	msg := interleaved()

	all, err := GetAll(msg, field3)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghi3", "mno5", "stu7"}, all)

	_, err = GetAll(msg, field5)
	assert.ErrorIs(t, err, errspkg.ErrTagAbsent)
}

func TestFreezeTransfersEverything(t *testing.T) {
	b := NewBuilder()
	AddValue(b, field1, "a")
	AddValue(b, field2, "b")
	AddValue(b, field1, "c")
	require.Equal(t, 3, b.Len())

	msg := b.Freeze()
	assert.Equal(t, 3, msg.Len())
	assert.Equal(t, 2, msg.Count(1))
	assert.Equal(t, 1, msg.Count(2))
	assert.Equal(t, []fields.Tag{1, 2}, msg.Tags())

	// the builder starts over and cannot reach the frozen message
	assert.Equal(t, 0, b.Len())
	b.Add(field1.With("d"))
	assert.Equal(t, 2, msg.Count(1))
	v, err := GetAt(msg, field1, 1)
	require.NoError(t, err)
	assert.Equal(t, "c", v)
}

func TestFreezeEmpty(t *testing.T) {
	msg := NewBuilder().Freeze()
	assert.Equal(t, 0, msg.Len())
	assert.Empty(t, msg.Tags())
	_, err := msg.TagValue(1)
	assert.ErrorIs(t, err, errspkg.ErrTagAbsent)

	var zero Builder
	zero.Add(field1.With("x"))
	assert.Equal(t, 1, zero.Freeze().Count(1))
}

func TestAllYieldsInsertionOrder(t *testing.T) {
	msg := interleaved()

	var tags []fields.Tag
	var vals []string
	for tag, v := range msg.All() {
		tags = append(tags, tag)
		s, _ := v.AsString()
		vals = append(vals, s)
	}
	assert.Equal(t, []fields.Tag{1, 2, 3, 2, 3, 1, 3, 1, 2}, tags)
	assert.Equal(t, "abc1", vals[0])
	assert.Equal(t, "yz90", vals[8])

	count := 0
	for range msg.All() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestRandomInsertionsMatchPerTagOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	expected := map[fields.Tag][]int64{}
	b := NewBuilder()

	const total = 500
	for i := 0; i < total; i++ {
		tag := fields.Tag(rng.Intn(12) + 1)
		val := rng.Int63()
		expected[tag] = append(expected[tag], val)
		b.AddTagValue(tag, fields.IntValue(val))
	}
	msg := b.Freeze()

	assert.Equal(t, total, msg.Len())
	sum := 0
	for tag, want := range expected {
		f := fields.NewIntField(tag, "Random")
		got, err := GetAll(msg, f)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		sum += msg.Count(tag)
	}
	assert.Equal(t, total, sum)
}

func TestConcurrentReaders(t *testing.T) {
	msg := interleaved()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				v, err := GetAt(msg, field3, 2)
				if err != nil || v != "stu7" {
					t.Errorf("unexpected read %q, %v", v, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
