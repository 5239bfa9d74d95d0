package compounds

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var compoundColumns = []string{
	"CompoundId", "Name", "Formula", "MonoisotopicMass",
	"HMDBId", "KEGGId", "PubChemId", "SmilesDescription", "InChi",
}

func TestReadSQL(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantIDs   []string
		errMsg    string
	}{
		{
			name: "rows with nulls",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM CompoundTable").WillReturnRows(
					sqlmock.NewRows(compoundColumns).
						AddRow("C1", "first", "C8H3NO3", 169.0013, "HMDB0000001", nil, nil, nil, nil).
						AddRow("C2", nil, nil, 250.0, nil, "C00031", nil, "OC1", nil),
				)
			},
			wantIDs: []string{"C1", "C2"},
		},
		{
			name: "query error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM CompoundTable").WillReturnError(assert.AnError)
			},
			errMsg: "failed to query compounds",
		},
		{
			name: "scan error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM CompoundTable").WillReturnRows(
					sqlmock.NewRows(compoundColumns).
						AddRow("C1", "first", nil, "heavy", nil, nil, nil, nil, nil),
				)
			},
			errMsg: "failed to scan compound",
		},
		{
			name: "invalid mass",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM CompoundTable").WillReturnRows(
					sqlmock.NewRows(compoundColumns).
						AddRow("C1", "first", nil, 0.0, nil, nil, nil, nil, nil),
				)
			},
			errMsg: "compound C1",
		},
		{
			name: "row error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM CompoundTable").WillReturnRows(
					sqlmock.NewRows(compoundColumns).
						AddRow("C1", "first", nil, 169.0013, nil, nil, nil, nil, nil).
						RowError(0, assert.AnError),
				)
			},
			errMsg: "failed to read compounds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setupMock(mock)

			got, err := ReadSQL(context.Background(), db)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)

			ids := make([]string, len(got))
			for i, c := range got {
				ids[i] = c.InternalID
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, "HMDB0000001", got[0].DBIDs["hmdb"])
			assert.Equal(t, "C00031", got[1].DBIDs["kegg"])
			assert.Equal(t, "OC1", got[1].SMILES)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
