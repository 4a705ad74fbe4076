package sasl

import "fmt"

func errAlreadyFinished(mechanism string) error {
	return fmt.Errorf("sasl: %s mechanism already finished", mechanism)
}
