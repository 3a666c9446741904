package profile

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"account-service/internal/auth"
	"account-service/internal/db"
)

const testUserID = "0190b3c8-1d8e-7a43-9d7e-5a1b2c3d4e5f"

var profileCols = []string{"id", "user_id", "first_name", "last_name", "patronymic", "phone_number", "birth_day", "timezone", "city_id", "created_at", "updated_at"}

func newMockService(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	database := db.New(mock)
	svc := NewService(NewRepository(database), database)
	svc.now = func() time.Time { return fixedNow }
	return svc, mock
}

func profileRow(patronymic *string) *pgxmock.Rows {
	return pgxmock.NewRows(profileCols).AddRow(
		"p-1", testUserID, "Иван", "Петров", patronymic, "79990000000",
		(*time.Time)(nil), (*string)(nil), testCityID, fixedNow, fixedNow,
	)
}

func validCreate() CreateInput {
	return CreateInput{FirstName: "иван", LastName: "петров", PhoneNumber: "+7 999 000 00 00", CityID: testCityID}
}

func TestService_Create(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM profiles WHERE user_id = \$1`).
		WithArgs(testUserID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO profiles`).
		WithArgs(pgxmock.AnyArg(), testUserID, "Иван", "Петров", (*string)(nil), "79990000000", (*time.Time)(nil), (*string)(nil), testCityID, fixedNow).
		WillReturnRows(profileRow(nil))
	mock.ExpectCommit()

	p, err := svc.Create(context.Background(), testUserID, validCreate())
	require.NoError(t, err)
	require.Equal(t, "Петров Иван", p.FullName())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CreateExisting(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM profiles WHERE user_id = \$1`).
		WithArgs(testUserID).
		WillReturnRows(profileRow(nil))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), testUserID, validCreate())
	require.ErrorIs(t, err, ErrProfileExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CreateUnknownCity(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM profiles WHERE user_id = \$1`).
		WithArgs(testUserID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO profiles`).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), testUserID, validCreate())
	require.EqualError(t, err, "validation failed: 1 field(s)")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UpdateMissing(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM profiles WHERE user_id = \$1 FOR UPDATE`).
		WithArgs(testUserID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.Update(context.Background(), testUserID, UpdateInput{})
	require.ErrorIs(t, err, ErrProfileNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Update(t *testing.T) {
	svc, mock := newMockService(t)
	patronymic := "Сергеевич"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM profiles WHERE user_id = \$1 FOR UPDATE`).
		WithArgs(testUserID).
		WillReturnRows(profileRow(&patronymic))
	mock.ExpectQuery(`UPDATE profiles`).
		WithArgs("p-1", "Иван", "Петров", (*string)(nil), "79991112233", (*time.Time)(nil), (*string)(nil), testCityID, fixedNow).
		WillReturnRows(profileRow(nil))
	mock.ExpectCommit()

	in := UpdateInput{
		Patronymic:  Optional[string]{Set: true, Null: true},
		PhoneNumber: Optional[string]{Set: true, Value: "7 999 111 22 33"},
	}
	p, err := svc.Update(context.Background(), testUserID, in)
	require.NoError(t, err)
	require.Nil(t, p.Patronymic)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Routes(t *testing.T) {
	svc, mock := newMockService(t)
	h := NewHandler(svc)

	account := auth.Account{ID: testUserID, Username: "test@example.com", Email: "test@example.com"}
	withAccount := func(req *http.Request) *http.Request {
		return req.WithContext(auth.WithAccount(req.Context(), &auth.Claims{}, account))
	}

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/profile", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	mock.ExpectQuery(`SELECT .* FROM profiles WHERE user_id = \$1`).
		WithArgs(testUserID).
		WillReturnError(pgx.ErrNoRows)
	rec = httptest.NewRecorder()
	h.Get(rec, withAccount(httptest.NewRequest(http.MethodGet, "/profile", nil)))
	require.Equal(t, http.StatusNotFound, rec.Code)

	mock.ExpectQuery(`SELECT .* FROM profiles WHERE user_id = \$1`).
		WithArgs(testUserID).
		WillReturnRows(profileRow(nil))
	rec = httptest.NewRecorder()
	h.Get(rec, withAccount(httptest.NewRequest(http.MethodGet, "/profile", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{
		"fullName": "Петров Иван",
		"firstName": "Иван",
		"lastName": "Петров",
		"patronymic": null,
		"phoneNumber": "79990000000",
		"birthDay": null,
		"cityId": "`+testCityID+`",
		"timezone": null,
		"user": {"id": "`+testUserID+`", "username": "test@example.com", "email": "test@example.com"}
	}`, rec.Body.String())

	rec = httptest.NewRecorder()
	body := bytes.NewBufferString(`{"firstName":"John","lastName":"Петров","phoneNumber":"1","cityId":"` + testCityID + `"}`)
	h.Create(rec, withAccount(httptest.NewRequest(http.MethodPost, "/profile", body)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM profiles WHERE user_id = \$1`).
		WithArgs(testUserID).
		WillReturnRows(profileRow(nil))
	mock.ExpectRollback()
	rec = httptest.NewRecorder()
	body = bytes.NewBufferString(`{"firstName":"Иван","lastName":"Петров","phoneNumber":"1","cityId":"` + testCityID + `"}`)
	h.Create(rec, withAccount(httptest.NewRequest(http.MethodPost, "/profile", body)))
	require.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}
