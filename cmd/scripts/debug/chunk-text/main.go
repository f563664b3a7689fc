package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/lectern/pkg/location"
	"github.com/shishobooks/lectern/pkg/textchunk"
)

func main() {
	log := logger.New()

	var opts struct {
		ChunkSize int64  `short:"s" long:"chunk-size" default:"30720" description:"Window size in bytes"`
		Token     string `short:"t" long:"token" description:"A location token to resolve against the windows"`
		Print     int    `short:"p" long:"print" default:"-1" description:"Print the content of this window"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/chunk-text [-s size] [-t token] <path/to/file.txt>")
		os.Exit(1)
	}

	s, err := textchunk.BuildChunked(args[0], opts.ChunkSize)
	if err != nil {
		log.Err(err).Fatal("chunk error")
	}

	fmt.Printf("Title: %s\nWindows: %d\n", s.Metadata.Title, len(s.Spine))
	for i, ref := range s.Spine {
		fmt.Printf("  %4d  %s\n", i, ref.Href)
	}

	if opts.Token != "" {
		t, err := location.NewResolver(s).Resolve(opts.Token)
		if err != nil {
			log.Err(err).Fatal("resolve error")
		}
		fmt.Printf("%s -> window %d at %.4f\n", opts.Token, t.Ordinal, t.Fraction)
	}

	if ref := s.Chapter(opts.Print); ref != nil {
		data, err := textchunk.ReadChunk(args[0], ref.Offset, ref.Length)
		if err != nil {
			log.Err(err).Fatal("read error")
		}
		os.Stdout.Write(data)
	}
}
