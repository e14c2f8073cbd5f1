package cmd

import (
	"fmt"
)

// Version is the release version stamped into the banner.
const Version = "1.0.0"

const banner = `
   _____ _               _                 _
  / ____| |             | |               | |
 | |  __| | __ _ ___ ___| |__   __ _ _ __ | | __
 | | |_ | |/ _` + "`" + ` / __/ __| '_ \ / _` + "`" + ` | '_ \| |/ /
 | |__| | | (_| \__ \__ \ |_) | (_| | | | |   <
  \_____|_|\__,_|___/___/_.__/ \__,_|_| |_|_|\_\

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[33m  Vulnerable Training Bank - Version %s\x1b[0m\n", Version)
	fmt.Printf("\x1b[31m  For training use only. Do not expose publicly.\x1b[0m\n\n")
}
