package csvimport

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ReadAll(t *testing.T) {
	input := "\xEF\xBB\xBFClass_ID , course_type,monthly_fee\n" +
		"a, monthly ,500\n" +
		" , , \n" +
		"b,yearly\n"

	p, err := NewParser(strings.NewReader(input))
	require.NoError(t, err)
	require.NoError(t, p.ParseHeader())
	assert.Empty(t, p.MissingHeaders("class_id", "course_type", "monthly_fee"))
	assert.Equal(t, []string{"yearly_fee"}, p.MissingHeaders("class_id", "yearly_fee"))

	rows, err := p.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "monthly", rows[0].Get("course_type"))
	assert.Equal(t, "500", rows[0].Get("monthly_fee"))

	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, "", rows[1].Get("monthly_fee"))
}

func TestParser_Errors(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		_, err := NewParser(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("invalid encoding", func(t *testing.T) {
		_, err := NewParser(strings.NewReader("class_id\n\xff\xfe\n"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("header only", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("class_id,course_type\n"))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())
		_, err = p.ReadAll()
		assert.ErrorIs(t, err, ErrNoDataRows)
	})

	t.Run("too many rows", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("a\n1\n2\n3\n"), WithMaxRows(2))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())
		_, err = p.ReadAll()
		assert.ErrorIs(t, err, ErrTooManyRows)
	})

	t.Run("read past end", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("a\n"))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())
		_, err = p.ReadRow()
		assert.True(t, errors.Is(err, io.EOF))
	})
}

func TestParser_Delimiter(t *testing.T) {
	p, err := NewParser(strings.NewReader("class_id;monthly_fee\nx;12.5\n"), WithDelimiter(';'))
	require.NoError(t, err)
	require.NoError(t, p.ParseHeader())
	rows, err := p.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "12.5", rows[0].Get("monthly_fee"))
}

func TestFieldValidator(t *testing.T) {
	rules := []FieldRule{
		Field("class_id").Required().UUID().Build(),
		Field("monthly_fee").Decimal().MinValue(decimal.Zero).Build(),
		Field("course_type").Custom(func(v string) error {
			if v != "monthly" {
				return errors.New("unsupported")
			}
			return nil
		}).Build(),
	}

	row := func(line int, data map[string]string) *Row { return &Row{Line: line, Data: data} }

	v := NewFieldValidator(rules, 10)
	assert.True(t, v.ValidateRow(row(2, map[string]string{
		"class_id": "7f0b7f0e-5a52-4c1a-9a49-0f3b8c2e1d11", "monthly_fee": "500", "course_type": "monthly",
	})))
	assert.True(t, v.ValidateRow(row(3, map[string]string{
		"class_id": "7f0b7f0e-5a52-4c1a-9a49-0f3b8c2e1d11",
	})), "optional columns may be blank")
	assert.False(t, v.Errors().HasErrors())

	assert.False(t, v.ValidateRow(row(4, map[string]string{
		"class_id": "nope", "monthly_fee": "-1", "course_type": "weekly",
	})))
	assert.False(t, v.ValidateRow(row(5, map[string]string{"monthly_fee": "abc"})))

	errs := v.Errors().Errors()
	require.Len(t, errs, 5)
	assert.Equal(t, ErrCodeInvalidType, errs[0].Code)
	assert.Equal(t, "class_id", errs[0].Column)
	assert.Equal(t, ErrCodeInvalidRange, errs[1].Code)
	assert.Equal(t, ErrCodeInvalidValue, errs[2].Code)
	assert.Equal(t, ErrCodeRequired, errs[3].Code)
	assert.Equal(t, 5, errs[3].Row)
	assert.Equal(t, ErrCodeInvalidType, errs[4].Code)
	assert.Equal(t, "row 4, column 'class_id': must be a UUID", errs[0].Error())
}

func TestErrorCollection_Truncates(t *testing.T) {
	ec := NewErrorCollection(2)
	for i := 0; i < 5; i++ {
		ec.Add(RowError{Row: i + 2, Code: ErrCodeMalformedRow, Message: "bad"})
	}
	assert.Len(t, ec.Errors(), 2)
	assert.Equal(t, 5, ec.TotalCount())
	assert.True(t, ec.IsTruncated())
	assert.Equal(t, "row 2: bad", ec.Errors()[0].Error())
}
