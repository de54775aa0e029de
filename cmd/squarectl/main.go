package main

import "github.com/ukp-square/squarectl/cmd/squarectl/internal"

func main() {
	internal.Execute()
}
