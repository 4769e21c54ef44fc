// cmd/ironcore/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ironcore/internal/app"
	"ironcore/internal/clients"
	"ironcore/internal/config"
	"ironcore/internal/enrollment"
	"ironcore/internal/lifecycle"
	"ironcore/internal/transaction"
)

const usage = `usage: ironcore [flags] <command> [args]

commands:
  register                      create the account and sign in
  status                        show the resolved membership state
  classes                       list classes
  schedules <classId>           list selectable schedules of a class
  buy <SILVER|GOLD|PLATINUM|SESSION>
  enroll <classId> <scheduleId>
  confirm <transactionId> <pin>
  select <transactionId> <classId>...
  activate <transactionId>      administrators only
  complete <transactionId>      mark a session attended, administrators only
  dashboard
`

func main() {
	username := flag.String("user", os.Getenv("IRONCORE_USERNAME"), "username")
	password := flag.String("password", os.Getenv("IRONCORE_PASSWORD"), "password")
	email := flag.String("email", "", "email used by register")
	method := flag.String("method", "CARD", "payment method")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("failed to start", zap.Error(err))
	}

	r := &runner{app: a, username: *username, password: *password, email: *email, method: *method}
	out, err := r.run(ctx, flag.Arg(0), flag.Args()[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

type runner struct {
	app      *app.App
	username string
	password string
	email    string
	method   string
}

var errUsage = errors.New("bad arguments, run ironcore -h")

func (r *runner) run(ctx context.Context, cmd string, args []string) (any, error) {
	lc := r.app.Lifecycle

	if cmd == "register" {
		return r.app.Client.Register(ctx, clients.RegisterRequest{Username: r.username, Email: r.email, Password: r.password})
	}
	user, err := r.app.Client.Login(ctx, r.username, r.password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	switch cmd {
	case "status":
		return lc.GetMembershipStatus(ctx, user)

	case "classes":
		return r.app.Client.Classes(ctx)

	case "schedules":
		ids, err := parseIDs(args, 1)
		if err != nil {
			return nil, err
		}
		page, err := lc.LoadEnrollmentPage(ctx, ids[0])
		if err != nil {
			return nil, err
		}
		return page.Selectable(), nil

	case "buy":
		if len(args) != 1 {
			return nil, errUsage
		}
		tx, conflict, err := lc.PurchaseMembership(ctx, user, lifecycle.PurchaseInput{
			Type:          transaction.MembershipType(args[0]),
			PaymentMethod: r.method,
		})
		return orConflict(tx, conflict, err)

	case "enroll":
		ids, err := parseIDs(args, 2)
		if err != nil {
			return nil, err
		}
		page, err := lc.LoadEnrollmentPage(ctx, ids[0])
		if err != nil {
			return nil, err
		}
		for _, s := range page.Schedules {
			if s.ID == ids[1] {
				tx, conflict, err := lc.EnrollInClass(ctx, user, lifecycle.EnrollInput{Class: page.Class, Schedule: s, PaymentMethod: r.method})
				return orConflict(tx, conflict, err)
			}
		}
		return nil, fmt.Errorf("schedule %d is not offered for class %d", ids[1], ids[0])

	case "confirm":
		if len(args) != 2 {
			return nil, errUsage
		}
		ids, err := parseIDs(args[:1], 1)
		if err != nil {
			return nil, err
		}
		return lc.ConfirmPayment(ctx, lifecycle.ConfirmInput{TransactionID: ids[0], PIN: args[1]})

	case "select":
		if len(args) < 2 {
			return nil, errUsage
		}
		ids, err := parseIDs(args, len(args))
		if err != nil {
			return nil, err
		}
		return lc.SelectClasses(ctx, user, lifecycle.SelectionInput{TransactionID: ids[0], ClassIDs: ids[1:]})

	case "activate":
		ids, err := parseIDs(args, 1)
		if err != nil {
			return nil, err
		}
		return lc.ActivateMembership(ctx, user, ids[0])

	case "complete":
		ids, err := parseIDs(args, 1)
		if err != nil {
			return nil, err
		}
		return lc.CompleteSession(ctx, user, ids[0])

	case "dashboard":
		return lc.Dashboard(ctx, user, time.Now()), nil

	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func orConflict(tx *transaction.Transaction, conflict *enrollment.Conflict, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, errors.New(conflict.Message())
	}
	return tx, nil
}

func parseIDs(args []string, n int) ([]int64, error) {
	if len(args) != n {
		return nil, errUsage
	}
	ids := make([]int64, n)
	for i, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%q is not a valid id", a)
		}
		ids[i] = id
	}
	return ids, nil
}
