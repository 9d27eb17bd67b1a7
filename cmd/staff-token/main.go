// Command staff-token mints an access token for a door device or a staff
// member.  The identity provider normally issues these; the command exists
// for events run without one.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/iliyamo/event-ticketing/internal/utils"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		userID uint64
		role   string
		ttlMin int
		secret string
	)
	fs := pflag.NewFlagSet("staff-token", pflag.ContinueOnError)
	fs.Uint64Var(&userID, "user", 0, "user id placed in the sub claim")
	fs.StringVar(&role, "role", "STAFF", "role claim (STAFF or ADMIN)")
	fs.IntVar(&ttlMin, "ttl-min", 720, "token lifetime in minutes")
	fs.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "signing secret (default $JWT_SECRET)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if userID == 0 {
		return errors.New("--user is required")
	}
	if role != "STAFF" && role != "ADMIN" {
		return fmt.Errorf("unsupported role %q", role)
	}
	tok, err := utils.NewAccessToken(secret, userID, role, ttlMin)
	if err != nil {
		return err
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format("2006-01-02 15:04:05 MST"))
	return nil
}
