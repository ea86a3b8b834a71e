// Copyright 2024-2026 Aiku AI

package tgmd_test

import (
	"fmt"

	"github.com/aiku/signal-telegram-bridge/pkg/bridge/tgmd"
)

func ExampleConvert() {
	plain, styles := tgmd.Convert("**bold** and [docs](https://example.com)")
	fmt.Println(plain)
	for _, s := range styles {
		fmt.Println(s)
	}
	// Output:
	// bold and docs
	// 0:4:BOLD
	// 9:4:ITALIC
}

func ExampleConvert_nested() {
	plain, styles := tgmd.Convert("**a __b__**")
	fmt.Println(plain)
	for _, s := range styles {
		fmt.Println(s)
	}
	// Output:
	// a b
	// 0:3:BOLD
	// 2:1:ITALIC
}

func ExampleStyleRange_String() {
	fmt.Println(tgmd.StyleRange{Start: 3, Length: 7, Style: tgmd.StyleSpoiler})
	// Output: 3:7:SPOILER
}
