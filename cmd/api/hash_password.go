package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/masa162/imgbase/internal/security"
)

// hashPassword reads one line from in and writes its argon2id PHC string,
// ready for auth.password, to out.
func hashPassword(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
