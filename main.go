package main

import "github.com/medipass/hospital-worker/worker"

func main() {
	worker.New().Run()
}
