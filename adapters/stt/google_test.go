package stt_test

import (
	"github.com/LHYEjoo/POC-JASON-IMG/adapters/stt"
	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
)

var _ repositories.SpeechRecognizer = &stt.GoogleSpeechRecognizer{}
var _ repositories.SpeechRecognizer = &stt.MockSpeechRecognizer{}
