// rover-watch follows the rover dashboard's status stream and prints a
// one-line summary per update. With -once it prints a single status and
// exits; with -snapshot it saves the latest annotated camera frame.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-rover/internal/httpc"
	"github.com/teslashibe/go-rover/pkg/web"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "Dashboard host:port")
	every := flag.Duration("every", 0, "Print at most once per interval (0 = every update)")
	raw := flag.Bool("json", false, "Print raw JSON")
	once := flag.Bool("once", false, "Print the current status and exit")
	snapshot := flag.String("snapshot", "", "Save the latest camera frame to this JPEG file and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *snapshot != "" {
		if err := saveFrame(ctx, *addr, *snapshot); err != nil {
			fmt.Fprintf(os.Stderr, "snapshot: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *once {
		var st web.Status
		if err := httpc.GetJSON(ctx, nil, "http://"+*addr+"/api/status", &st); err != nil {
			fmt.Fprintf(os.Stderr, "status: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(summary(st))
		return
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/status"}
	for {
		err := watch(ctx, u.String(), *every, *raw)
		if ctx.Err() != nil {
			fmt.Println()
			return
		}
		fmt.Fprintf(os.Stderr, "\nconnection lost: %v, retrying in 1s\n", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func watch(ctx context.Context, u string, every time.Duration, raw bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	var last time.Time
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if every > 0 && time.Since(last) < every {
			continue
		}
		last = time.Now()

		if raw {
			fmt.Println(string(data))
			continue
		}

		var st web.Status
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("decode status: %w", err)
		}
		fmt.Printf("\r%s", summary(st))
	}
}

func saveFrame(ctx context.Context, addr, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := httpc.Download(ctx, nil, "http://"+addr+"/api/frame.jpg", f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	fmt.Printf("saved %s (%d bytes)\n", path, n)
	return nil
}

func summary(st web.Status) string {
	line := fmt.Sprintf("%-8s", st.Mode)
	if !st.GamepadConnected {
		line += " [no gamepad]"
	}
	if v := st.Vehicle; v != nil {
		line += fmt.Sprintf(" throttle=%d front=%d rear=%d pan=%d tilt=%d",
			v.Throttle, v.FrontSteer, v.RearSteer, v.Pan, v.Tilt)
	}
	if p := st.Perception; p != nil {
		if p.Target != nil {
			line += fmt.Sprintf(" target=%s(%.2f)", p.Target.Label, p.Target.Confidence)
		} else {
			line += " target=-"
		}
		line += fmt.Sprintf(" age=%dms", p.AgeMs)
	}
	return line + "    "
}
