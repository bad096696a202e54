// Command hostsync keeps hosts file entries in sync with DNS zones.
package main

import "github.com/munichmade/hostsync/cmd/hostsync/cmd"

func main() {
	cmd.Execute()
}
