package tablesvc

import (
	"errors"
	"fmt"
)

// Code é o status numérico devolvido pelo serviço de tabelas (0 = sucesso).
// Os valores seguem os códigos errno usados pelo cliente nativo.
type Code int32

const (
	OK       Code = 0
	ENOENT   Code = 2
	EIO      Code = 5
	EAGAIN   Code = 11
	EBUSY    Code = 16
	EINVAL   Code = 22
	ENOTSUP  Code = 95
	ENOTCONN Code = 107
	EALREADY Code = 114
)

var codeNames = map[Code]string{
	OK:       "OK",
	ENOENT:   "ENOENT",
	EIO:      "EIO",
	EAGAIN:   "EAGAIN",
	EBUSY:    "EBUSY",
	EINVAL:   "EINVAL",
	ENOTSUP:  "ENOTSUP",
	ENOTCONN: "ENOTCONN",
	EALREADY: "EALREADY",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int32(c))
}

// StatusError carrega o status não-zero de uma operação na fronteira do serviço.
type StatusError struct {
	Op   string
	Code Code
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tablesvc: %s failed with %s (%d): %v", e.Op, e.Code, int32(e.Code), e.Err)
	}
	return fmt.Sprintf("tablesvc: %s failed with %s (%d)", e.Op, e.Code, int32(e.Code))
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// CodeOf extrai o status de um erro. nil vira OK e erros que não vieram
// da fronteira são tratados como EIO.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return EIO
}

func statusf(op string, code Code, format string, args ...any) error {
	return &StatusError{Op: op, Code: code, Err: fmt.Errorf(format, args...)}
}

// wrap preserva o código quando o backend já devolveu um StatusError.
func wrap(op string, fallback Code, err error) error {
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) {
		return &StatusError{Op: op, Code: se.Code, Err: se.Err}
	}
	return &StatusError{Op: op, Code: fallback, Err: err}
}
