package common

import (
	"encoding/hex"
	"fmt"
)

//EncodeToString renders hexBytes in uppercase hex with the 0X prefix. This is
//the canonical form of public keys throughout the system.
func EncodeToString(hexBytes []byte) string {
	return fmt.Sprintf("0X%X", hexBytes)
}

//DecodeFromString parses a 0X-prefixed hex string back into bytes.
func DecodeFromString(hexString string) ([]byte, error) {
	return hex.DecodeString(hexString[2:])
}
