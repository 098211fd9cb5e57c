package main

import (
	"crypto/rand"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/gohornet/mam/pkg/mam"
	"github.com/gohornet/mam/pkg/trinary"
)

var count = flag.IntP("count", "n", 1, "Number of seeds to generate")

func main() {
	flag.Parse()

	for i := 0; i < *count; i++ {
		b := make([]byte, mam.SeedTrytesLength)
		if _, err := rand.Read(b); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		tryteAlphabetLength := len(trinary.TryteAlphabet)
		var seed string
		for _, randByte := range b {
			seed += string(trinary.TryteAlphabet[randByte%byte(tryteAlphabetLength)])
		}

		fmt.Println(seed)
	}
}
