package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/guatepass/tolling/internal/currency"
	"github.com/guatepass/tolling/internal/domain"
)

// UsersCSVColumns is the expected header of a user import file.
var UsersCSVColumns = []string{
	"placa", "nombre", "email", "telefono", "tipo_usuario", "tiene_tag", "tag_id", "saldo_disponible",
}

const defaultUserName = "Sin Nombre"

// RowError is a record that could not be imported. Line numbers count the
// header as line 1.
type RowError struct {
	Line  int    `json:"line"`
	Plate string `json:"plate,omitempty"`
	Error string `json:"error"`
}

// ParseUsersCSV reads a user import file. Columns are matched by header name
// so their order does not matter; only placa is required. Malformed rows are
// returned as RowErrors and do not stop the parse.
//
// Expected header:
//
//	placa,nombre,email,telefono,tipo_usuario,tiene_tag,tag_id,saldo_disponible
func ParseUsersCSV(r io.Reader) ([]domain.UserProfile, []RowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := cols["placa"]; !ok {
		return nil, nil, domain.NewValidationError("placa", "column missing from header")
	}

	var users []domain.UserProfile
	var rowErrs []RowError
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rowErrs = append(rowErrs, RowError{Line: lineNum, Error: err.Error()})
				continue
			}
			return nil, nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		field := func(name string) string {
			if i, ok := cols[name]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		u, err := parseUserRow(field)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: lineNum, Plate: field("placa"), Error: err.Error()})
			continue
		}
		users = append(users, u)
	}

	return users, rowErrs, nil
}

func parseUserRow(field func(string) string) (domain.UserProfile, error) {
	u := domain.UserProfile{
		Plate:    domain.NormalizePlate(field("placa")),
		Name:     field("nombre"),
		Email:    field("email"),
		Phone:    field("telefono"),
		UserType: domain.UserType(strings.ToLower(field("tipo_usuario"))),
		HasTag:   parseTruthy(field("tiene_tag")),
		TagID:    field("tag_id"),
		Status:   domain.AccountActive,
	}
	if u.Plate == "" {
		return u, domain.NewValidationError("placa", "is required")
	}
	if u.Name == "" {
		u.Name = defaultUserName
	}

	switch u.UserType {
	case domain.UserRegistered, domain.UserUnregistered:
	case "":
		u.UserType = domain.UserUnregistered
		if u.Email != "" || u.Phone != "" {
			u.UserType = domain.UserRegistered
		}
	default:
		return u, domain.NewValidationError("tipo_usuario", "unknown user type %q", u.UserType)
	}

	if u.HasTag {
		u.TagStatus = domain.TagActive
	}

	balance, err := currency.Parse(field("saldo_disponible"))
	if err != nil {
		return u, domain.NewValidationError("saldo_disponible", "%v", err)
	}
	u.Balance = balance

	return u, u.Validate()
}

func parseTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "si", "sí":
		return true
	}
	return false
}
