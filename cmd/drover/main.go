package main

import (
	drover "github.com/crispml/drover"
)

func main() {
	drover.NewDriver().Main()
}
