// ipcdump frames a captured channel byte stream and prints each
// message's header fields. It is a diagnostic tool for inspecting
// traffic recorded from one side of a channel.
package main

import (
	"flag"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/danmuck/ipcmsg/internal/logging"
	"github.com/danmuck/ipcmsg/ipc"
)

func main() {
	configPath := flag.String("config", "", "TOML layout config for the capture")
	inPath := flag.String("in", "-", "capture file to dump, - for stdin")
	flag.Parse()

	logging.ConfigureRuntime()
	log := logging.New("ipcdump")

	layout, err := loadLayout(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("layout config")
	}

	in := os.Stdin
	if *inPath != "-" {
		f, err := os.Open(*inPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open capture")
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		log.Fatal().Err(err).Msg("read capture")
	}

	count := 0
	for len(data) > 0 {
		size := ipc.MessageSize(layout, data)
		if size == 0 {
			log.Warn().Int("trailing_bytes", len(data)).Msg("capture ends mid-message")
			break
		}
		if int(size) > len(data) {
			log.Warn().Uint32("frame_size", size).Int("available", len(data)).Msg("capture truncated")
			break
		}

		msg, err := ipc.Parse(layout, data[:size])
		if err != nil {
			log.Fatal().Err(err).Int("index", count).Msg("parse message")
		}
		dump(log, count, msg)
		data = data[size:]
		count++
	}
	log.Info().Int("messages", count).Msg("done")
}

func dump(log zerolog.Logger, index int, msg *ipc.Message) {
	ev := log.Info().
		Int("index", index).
		Int32("routing", msg.RoutingID()).
		Uint32("type", msg.Type()).
		Str("nested", msg.NestedLevel().String()).
		Str("priority", msg.Priority().String()).
		Bool("sync", msg.IsSync()).
		Bool("interrupt", msg.IsInterrupt()).
		Bool("reply", msg.IsReply()).
		Bool("reply_error", msg.IsReplyError()).
		Str("compress", msg.CompressType().String()).
		Bool("trace_header", msg.HasTraceHeader()).
		Int32("seqno", msg.Seqno()).
		Int("size", msg.Size())
	if n, err := msg.NumDescriptors(); err == nil {
		ev = ev.Uint32("num_fds", n)
	}
	if !msg.IsInterrupt() {
		if txid, err := msg.TransactionID(); err == nil {
			ev = ev.Int32("txid", txid)
		}
	}
	ev.Msg("message")
}
