// Command drawr is a CLI client for the drawr service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/client"
	"github.com/drawrhq/drawr/internal/guest"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "drawr")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "drawr")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func guestPath() string { return filepath.Join(cfgDir(), "guest") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(tokenPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func openGuest() *guest.Store {
	st, err := guest.Open(guestPath(), zap.NewNop())
	if err != nil {
		fail(err)
	}
	return st
}

func authedREST(addr string) *client.REST {
	token, err := loadToken()
	if err != nil {
		fail(err)
	}
	return client.NewREST(addr, token)
}

func usage() {
	fmt.Fprintf(os.Stderr, `drawr CLI
Usage:
  drawr -addr http://HOST:PORT <cmd> [args]

Commands:
  version
  register     -e <email> -u <username> -p <password>
  login        -e <email> -p <password>               (saves token)
  rooms                                               (joined rooms)
  create-room  -slug <slug>
  room         -slug <slug>
  join-room    -slug <slug>
  leave-room   -id <roomId>
  rm-room      -id <roomId>
  shapes       -id <roomId>                           (durable history)
  watch        -id <roomId>                           (tail live frames)
  import-guest -id <roomId>                           (upload guest canvas)
  guest-show
  guest-clear
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the HTTP and WebSocket API.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("drawr %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		e := fs.String("e", "", "email")
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *e == "" || *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -e -u -p")
			os.Exit(1)
		}

		msg, err := client.NewREST(*addr, "").Signup(ctx, *e, *u, *p)
		if err != nil {
			fail(err)
		}
		fmt.Println(msg)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		e := fs.String("e", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *e == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -e and -p")
			os.Exit(1)
		}

		token, user, err := client.NewREST(*addr, "").Signin(ctx, *e, *p)
		if err != nil {
			fail(err)
		}

		// parse exp from JWT; fall back to a short local TTL
		var claims jwt.RegisteredClaims
		_, _ = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return nil, nil },
			jwt.WithoutClaimsValidation(),
		)
		exp := time.Now().Add(15 * time.Minute)
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
		}
		if err := saveToken(token, exp); err != nil {
			fail(err)
		}
		fmt.Printf("ok (logged in as %s)\n", user.Username)

	case "rooms":
		rooms, err := authedREST(*addr).Rooms(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(rooms)

	case "create-room":
		fs := flag.NewFlagSet("create-room", flag.ExitOnError)
		slug := fs.String("slug", "", "room slug")
		_ = fs.Parse(flag.Args()[1:])
		if *slug == "" {
			fmt.Fprintln(os.Stderr, "need -slug")
			os.Exit(1)
		}

		room, err := authedREST(*addr).CreateRoom(ctx, *slug)
		if err != nil {
			fail(err)
		}
		printJSON(room)

	case "room":
		fs := flag.NewFlagSet("room", flag.ExitOnError)
		slug := fs.String("slug", "", "room slug")
		_ = fs.Parse(flag.Args()[1:])
		if *slug == "" {
			fmt.Fprintln(os.Stderr, "need -slug")
			os.Exit(1)
		}

		room, err := authedREST(*addr).RoomBySlug(ctx, *slug)
		if err != nil {
			fail(err)
		}
		printJSON(room)

	case "join-room":
		fs := flag.NewFlagSet("join-room", flag.ExitOnError)
		slug := fs.String("slug", "", "room slug")
		_ = fs.Parse(flag.Args()[1:])
		if *slug == "" {
			fmt.Fprintln(os.Stderr, "need -slug")
			os.Exit(1)
		}

		rest := authedREST(*addr)
		room, err := rest.RoomBySlug(ctx, *slug)
		if err != nil {
			fail(err)
		}
		if err := rest.JoinRoom(ctx, room.ID); err != nil {
			fail(err)
		}
		printJSON(room)

	case "leave-room":
		fs := flag.NewFlagSet("leave-room", flag.ExitOnError)
		id := fs.Int64("id", 0, "room id")
		_ = fs.Parse(flag.Args()[1:])
		if *id == 0 {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		if err := authedREST(*addr).LeaveRoom(ctx, *id); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "rm-room":
		fs := flag.NewFlagSet("rm-room", flag.ExitOnError)
		id := fs.Int64("id", 0, "room id")
		_ = fs.Parse(flag.Args()[1:])
		if *id == 0 {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		if err := authedREST(*addr).DeleteRoom(ctx, *id); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "shapes":
		fs := flag.NewFlagSet("shapes", flag.ExitOnError)
		id := fs.Int64("id", 0, "room id")
		_ = fs.Parse(flag.Args()[1:])
		if *id == 0 {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		els, err := authedREST(*addr).History(ctx, *id)
		if err != nil {
			fail(err)
		}
		printJSON(els)

	case "watch":
		fs := flag.NewFlagSet("watch", flag.ExitOnError)
		id := fs.Int64("id", 0, "room id")
		_ = fs.Parse(flag.Args()[1:])
		if *id == 0 {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		token, err := loadToken()
		if err != nil {
			fail(err)
		}
		// no deadline: tail until interrupted
		wctx, wcancel := context.WithCancel(context.Background())
		defer wcancel()
		sock, err := client.Dial(wctx, *addr, token, zap.NewNop())
		if err != nil {
			fail(err)
		}
		defer sock.Close()
		sock.JoinRoom(*id)
		sock.Listen(wctx, func(data []byte) {
			fmt.Println(string(data))
		})

	case "import-guest":
		fs := flag.NewFlagSet("import-guest", flag.ExitOnError)
		id := fs.Int64("id", 0, "room id")
		_ = fs.Parse(flag.Args()[1:])
		if *id == 0 {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		st := openGuest()
		defer st.Close()
		n, err := client.ImportGuest(ctx, authedREST(*addr), st, *id)
		if err != nil {
			fail(fmt.Errorf("imported %d shapes, then: %w", n, err))
		}
		fmt.Printf("imported %d shapes\n", n)

	case "guest-show":
		st := openGuest()
		defer st.Close()
		els, err := st.Load()
		if err != nil {
			fail(err)
		}
		printJSON(els)

	case "guest-clear":
		st := openGuest()
		defer st.Close()
		if err := st.Clear(); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	default:
		usage()
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
