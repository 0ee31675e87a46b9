package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"sshbot/internal/remote"
)

const (
	summaryCommand = `cat /etc/os-release | grep PRETTY_NAME | cut -d'"' -f2; ` +
		`hostname; ` +
		`uptime -p; ` +
		`grep 'model name' /proc/cpuinfo | head -1 | cut -d':' -f2 | sed 's/^ *//'; ` +
		`free -h | awk '/^Mem:/ {print $3" / "$2}'; ` +
		`df -h / | awk 'NR==2 {print $3" / "$2" ("$5")"}'`
	networkCommand      = "ss -tulnp"
	speedtestCommand    = "speedtest-cli --simple"
	topProcessesCommand = "ps -eo pid,pcpu,pmem,comm --sort=-pcpu | head -n 11"

	speedtestTimeout = 2 * time.Minute
)

var summaryArt = []string{
	`      .--.     `,
	`     |o_o |    `,
	`     |:_/ |    `,
	`    //   \ \   `,
	`   (|     | )  `,
	`  /'\_   _/'\  `,
	`  \___)=(___/  `,
}

var (
	speedPing     = regexp.MustCompile(`Ping: ([\d.]+) ms`)
	speedDownload = regexp.MustCompile(`Download: ([\d.]+) Mbit/s`)
	speedUpload   = regexp.MustCompile(`Upload: ([\d.]+) Mbit/s`)
)

func failureText(res remote.Result) string {
	return "❌ " + html.EscapeString(res.Text())
}

// getSummaryText renders the host summary as HTML.
func getSummaryText(rc context.Context, ctx *AppContext) string {
	res := ctx.Remote.Execute(rc, summaryCommand)
	if res.Failed() {
		return failureText(res)
	}
	text, err := buildSummary(res.Stdout)
	if err != nil {
		slog.Error("Failed to build summary", "err", err, "output", res.Stdout)
		return "❌ Could not build the server summary. Check the logs."
	}
	return text
}

func buildSummary(output string) (string, error) {
	fields := strings.Split(output, "\n")
	if len(fields) != 6 {
		return "", fmt.Errorf("expected 6 summary lines, got %d", len(fields))
	}
	data := []string{
		"OS:      " + fields[0],
		"Host:    " + fields[1],
		"Uptime:  " + fields[2],
		"CPU:     " + fields[3],
		"RAM:     " + fields[4],
		"Disk:    " + fields[5],
		"",
	}
	lines := make([]string, len(summaryArt))
	for i := range summaryArt {
		lines[i] = summaryArt[i] + data[i]
	}
	return "ℹ️ <b>Server summary</b>\n\n" + preBlock(strings.Join(lines, "\n")), nil
}

func getNetworkText(rc context.Context, ctx *AppContext) string {
	res := ctx.Remote.Execute(rc, networkCommand)
	if res.Failed() {
		return failureText(res)
	}
	return "🔌 <b>Active network connections</b>\n\n" + preBlock(res.Stdout)
}

func getTopProcessesText(rc context.Context, ctx *AppContext) string {
	res := ctx.Remote.Execute(rc, topProcessesCommand)
	if res.Failed() {
		return failureText(res)
	}
	return "📈 <b>Top processes by CPU</b>\n\n" + preBlock(res.Stdout)
}

func getSpeedtestText(rc context.Context, ctx *AppContext) string {
	res := ctx.Remote.Execute(remote.WithCommandTimeout(rc, speedtestTimeout), speedtestCommand)
	if res.Failed() {
		return failureText(res)
	}
	text, err := parseSpeedtest(res.Stdout)
	if err != nil {
		slog.Warn("Unrecognised speedtest output", "err", err)
		return "🌐 <b>SpeedTest result (raw)</b>\n\n" + preBlock(res.Stdout)
	}
	return text
}

func parseSpeedtest(output string) (string, error) {
	ping := speedPing.FindStringSubmatch(output)
	down := speedDownload.FindStringSubmatch(output)
	up := speedUpload.FindStringSubmatch(output)
	if ping == nil || down == nil || up == nil {
		return "", errors.New("missing ping, download or upload line")
	}
	return fmt.Sprintf("🌐 <b>SpeedTest results</b>\n\n"+
		"📡 Ping: <code>%s ms</code>\n"+
		"⬇️ Download: <code>%s Mbit/s</code>\n"+
		"⬆️ Upload: <code>%s Mbit/s</code>",
		ping[1], down[1], up[1]), nil
}
