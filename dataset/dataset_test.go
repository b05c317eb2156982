package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/fraudkit/core"
)

const sampleCSV = `,trans_date_trans_time,cc_num,merchant,amt,gender,zip,lat,is_fraud
0,2019-01-01 00:00:18,2703186189652095,fraud_Rippin,4.97,F,28654,36.0788,0
1,2019-01-01 00:00:44,630423337322,fraud_Heller,107.23,F,99160,48.8878,1
2,2019-01-01 00:00:51,38859492057661,fraud_Lind,220.11,M,83252,,0
`

func TestReadCSV_InfersKinds(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	assert.Equal(t, []string{
		"Unnamed: 0", "trans_date_trans_time", "cc_num", "merchant", "amt", "gender", "zip", "lat", "is_fraud",
	}, ds.ColumnNames())

	kinds := map[string]core.ColumnKind{}
	for _, c := range ds.Columns {
		kinds[c.Name] = c.Kind
	}
	assert.Equal(t, core.KindNumeric, kinds["amt"])
	assert.Equal(t, core.KindNumeric, kinds["zip"])
	assert.Equal(t, core.KindNumeric, kinds["lat"])
	assert.Equal(t, core.KindCategorical, kinds["merchant"])
	assert.Equal(t, core.KindCategorical, kinds["trans_date_trans_time"])

	assert.Equal(t, int64(28654), ds.Rows[0]["zip"])
	assert.Equal(t, 4.97, ds.Rows[0]["amt"])
	assert.Nil(t, ds.Rows[2]["lat"])
	assert.Equal(t, 1, CountNulls(ds))

	labels, err := ds.Labels("is_fraud")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0}, labels)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))

	again, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, ds.Columns, again.Columns)
	assert.Equal(t, ds.Rows, again.Rows)
}

func TestValidator(t *testing.T) {
	train := &core.Dataset{Columns: []core.Column{
		{Name: "amt", Kind: core.KindNumeric},
		{Name: "is_fraud", Kind: core.KindNumeric},
	}}

	tests := []struct {
		name    string
		test    *core.Dataset
		target  string
		wantErr bool
	}{
		{
			name: "same columns different order",
			test: &core.Dataset{Columns: []core.Column{
				{Name: "is_fraud", Kind: core.KindNumeric},
				{Name: "amt", Kind: core.KindNumeric},
			}},
		},
		{
			name:    "test missing label",
			test:    &core.Dataset{Columns: []core.Column{{Name: "amt", Kind: core.KindNumeric}}},
			wantErr: true,
		},
		{
			name: "target absent everywhere",
			test: &core.Dataset{Columns: []core.Column{
				{Name: "amt", Kind: core.KindNumeric},
				{Name: "is_fraud", Kind: core.KindNumeric},
			}},
			target:  "label",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidator(tt.target, zerolog.Nop()).Validate(train, tt.test)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrSchemaMismatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIngestor(t *testing.T) {
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "train.csv")
	testPath := filepath.Join(dir, "test.csv")
	require.NoError(t, os.WriteFile(trainPath, []byte(sampleCSV), 0o644))

	ing := NewIngestor(IngestConfig{TrainPath: trainPath, TestPath: testPath}, zerolog.Nop())
	_, _, err := ing.Ingest(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, os.WriteFile(testPath, []byte(sampleCSV), 0o644))
	ing = NewIngestor(IngestConfig{TrainPath: trainPath, TestPath: testPath, Filter: "record.amt > 100"}, zerolog.Nop())
	train, test, err := ing.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, train.Len())
	assert.Equal(t, 2, test.Len())
}
