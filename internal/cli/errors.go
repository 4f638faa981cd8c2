package cli

import "errors"

var errWrongArgCount = errors.New("wrong number of arguments")
