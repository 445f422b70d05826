package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/program-catalog/internal/catalog"
)

func TestUpsertWritesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewProgramStoreWithPool(mock, "program_data")
	require.NoError(t, err)

	rec := catalog.ProgramRecord{
		ProgramTitle:       "Biology (BS)",
		ProgramURL:         "https://catalog.odu.edu/programs/biology-bs/",
		AcademicLevel:      "undergraduate",
		ProgramType:        "Major",
		AcademicInterests:  "Science",
		CollegesAndSchools: "College of Sciences",
		Department:         "Biological Sciences",
		Tabs: map[string]catalog.ContentSection{
			"Requirements": {Content: "<div>BIOL 121N</div>", Courses: []string{"BIOL 121N"}},
		},
		ProgramS3URI: "s3://bucket/Program_Catalog_Pipeline/program_pdfs/biology-bs.pdf",
	}
	tabsJSON, err := json.Marshal(rec.Tabs)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO program_data").
		WithArgs(
			rec.ProgramURL,
			rec.ProgramTitle,
			rec.AcademicLevel,
			rec.ProgramType,
			rec.AcademicInterests,
			rec.CollegesAndSchools,
			rec.Department,
			tabsJSON,
			rec.ProgramS3URI,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Upsert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertNilTabsStoredAsEmptyObject(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewProgramStoreWithPool(mock, "")
	require.NoError(t, err)

	rec := catalog.ProgramRecord{ProgramTitle: "B", ProgramURL: "Y", Department: catalog.DepartmentNotProvided}
	mock.ExpectExec("INSERT INTO program_data").
		WithArgs("Y", "B", "", "", "", "", catalog.DepartmentNotProvided, []byte("{}"), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Upsert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPropagatesExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewProgramStoreWithPool(mock, "program_data")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO program_data").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = store.Upsert(context.Background(), catalog.ProgramRecord{ProgramTitle: "A", ProgramURL: "X", Department: "D"})
	require.ErrorContains(t, err, "upsert program")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRequiresURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewProgramStoreWithPool(mock, "program_data")
	require.NoError(t, err)
	require.Error(t, store.Upsert(context.Background(), catalog.ProgramRecord{ProgramTitle: "A"}))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewProgramStoreWithPool(mock, "programs")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS programs").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewProgramStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewProgramStoreWithPool(nil, "program_data")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewProgramStoreWithPool(mock, "bad;table")
	require.Error(t, err)

	_, err = NewProgramStore(context.Background(), ProgramStoreConfig{})
	require.Error(t, err)
}
