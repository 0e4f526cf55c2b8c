package main

import (
	"locpak/internal/locpak"
)

func main() {
	locpak.Main()
}
