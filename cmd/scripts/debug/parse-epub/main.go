package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/epub"
	"github.com/shishobooks/lectern/pkg/fileutils"
	"github.com/shishobooks/lectern/pkg/unpack"
)

func main() {
	log := logger.New()
	ctx := log.WithContext(context.Background())

	var opts struct {
		CoverOutput string `short:"o" long:"cover-output" description:"A path to copy the cover image to"`
		JSON        bool   `short:"j" long:"json" description:"Print the parsed structure as JSON"`
		Keep        bool   `short:"k" long:"keep" description:"Keep the extraction directory"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/parse-epub <path/to/file.epub>")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "parse-epub-")
	if err != nil {
		log.Err(err).Fatal("temp dir error")
	}
	if !opts.Keep {
		defer os.RemoveAll(dir)
	}

	root, err := unpack.NewCache(dir).Unpack(ctx, 0, args[0])
	if err != nil {
		log.Err(err).Fatal("unpack error")
	}

	s, err := epub.Parse(ctx, root)
	if err != nil {
		log.Err(err).Fatal("epub parse error")
	}

	if opts.JSON {
		out, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			log.Err(err).Fatal("json encode error")
		}
		fmt.Println(string(out))
	} else {
		md := s.Metadata
		fmt.Printf("Title: %s\nAuthor: %s\nCover: %s (%s, %dx%d)\n", md.Title, md.Author, md.CoverHref, md.CoverMediaType, md.CoverWidth, md.CoverHeight)
		fmt.Printf("Spine (%d):\n", len(s.Spine))
		for i, ref := range s.Spine {
			fmt.Printf("  %3d  %s  %s\n", i, ref.Label, strings.TrimPrefix(ref.Href, root+"/"))
		}
		fmt.Printf("TOC (from spine: %v):\n", s.TOCFromSpine)
		printTOC(s.TOC, root, 1)
	}
	if opts.Keep {
		fmt.Printf("Extracted to %s\n", root)
	}

	if opts.CoverOutput != "" && s.Metadata.CoverHref != "" {
		if err := fileutils.CopyFile(s.Metadata.CoverHref, opts.CoverOutput); err != nil {
			log.Err(err).Fatal("cover copy error")
		}
	}
}

func printTOC(refs []*document.ChapterRef, root string, depth int) {
	for _, ref := range refs {
		fmt.Printf("%s- %s  %s\n", strings.Repeat("  ", depth), ref.Label, strings.TrimPrefix(ref.Href, root+"/"))
		printTOC(ref.Children, root, depth+1)
	}
}
