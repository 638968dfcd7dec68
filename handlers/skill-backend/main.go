package main

import (
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/uber/jaeger-client-go/crossdock/log"
)

type alexaRequest struct {
	Version string `json:"version"`
	Request struct {
		Type      string `json:"type"`
		RequestID string `json:"requestId"`
		Locale    string `json:"locale"`
		Intent    struct {
			Name string `json:"name"`
		} `json:"intent"`
	} `json:"request"`
}

type outputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type alexaResponse struct {
	Version  string `json:"version"`
	Response struct {
		OutputSpeech     *outputSpeech `json:"outputSpeech,omitempty"`
		ShouldEndSession bool          `json:"shouldEndSession"`
	} `json:"response"`
}

func speak(text string, endSession bool) alexaResponse {
	var resp alexaResponse
	resp.Version = "1.0"
	resp.Response.OutputSpeech = &outputSpeech{Type: "PlainText", Text: text}
	resp.Response.ShouldEndSession = endSession
	return resp
}

func handler(request alexaRequest) (alexaResponse, error) {
	log.Printf("[%s] %s %s\n", request.Request.RequestID, request.Request.Type, request.Request.Intent.Name)

	switch request.Request.Type {
	case "LaunchRequest":
		return speak("Welcome. You can say hello.", false), nil
	case "IntentRequest":
		switch request.Request.Intent.Name {
		case "HelloWorldIntent":
			return speak("Hello world!", true), nil
		case "AMAZON.HelpIntent":
			return speak("You can say hello to me.", false), nil
		case "AMAZON.StopIntent", "AMAZON.CancelIntent":
			return speak("Goodbye!", true), nil
		default:
			return speak("Sorry, I don't know that one.", false), nil
		}
	case "SessionEndedRequest":
		var resp alexaResponse
		resp.Version = "1.0"
		return resp, nil
	default:
		return alexaResponse{}, fmt.Errorf("unsupported request type: %s", request.Request.Type)
	}
}

func main() {
	lambda.Start(handler)
}
