// Command spotpanel controls a headless spotifyd speaker.
package main

import "github.com/tessro/spotpanel/internal/cli"

func main() {
	cli.Execute()
}
