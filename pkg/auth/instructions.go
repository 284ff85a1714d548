package auth

import (
	"fmt"
	"strings"
)

// ShowLoginGuide explains where blinksync looks for credentials and how the PIN step works
func ShowLoginGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("BLINK ACCOUNT SETUP")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
	fmt.Println("blinksync logs in with the email and password of your Blink account.")
	fmt.Println("They are looked up in this order:")
	fmt.Println("   1. EMAIL / PASSWORD (or BLINKSYNC_EMAIL / BLINKSYNC_PASSWORD)")
	fmt.Println("   2. the system keychain")
	fmt.Println("   3. an encrypted file in the blinksync config directory")
	fmt.Println()
	fmt.Println("After every login Blink emails or texts a one-time PIN.")
	fmt.Println("blinksync asks for it once at startup; the session then lasts")
	fmt.Println("for the life of the process.")
	fmt.Println()
	fmt.Println("Also required: SAVE_DIRECTORY (where Blink/ is created) and")
	fmt.Println("BLINK_API_SERVER (usually rest-prod.immedia-semi.com).")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
}
