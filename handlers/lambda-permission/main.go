package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	lambdasdk "github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/mitchellh/mapstructure"
	"github.com/uber/jaeger-client-go/crossdock/log"
)

const (
	statementIDLookupType = "Custom::LambdaPermissionStatementId"
	removePermissionType  = "Custom::RemoveLambdaPermission"
	addPermissionType     = "Custom::AddLambdaPermission"

	statementIDAttribute = "StatementId"
)

type deps struct {
	lambda lambdaiface.LambdaAPI
}

type lookupProperties struct {
	LambdaFunctionArn       string
	ServicePrincipalToMatch string
	ActionToMatch           string
}

type permissionProperties struct {
	FunctionName     string
	StatementID      string `mapstructure:"StatementId"`
	Principal        string
	Action           string
	EventSourceToken string
	SkillID          string `mapstructure:"SkillId"`
}

type policy struct {
	Statement []policyStatement
}

type policyStatement struct {
	Sid       string
	Principal interface{}
	Action    interface{}
}

func (deps *deps) handler(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	log.Printf("[%s] %s %s\n", event.RequestType, event.ResourceType, event.LogicalResourceID)

	switch event.ResourceType {
	case statementIDLookupType:
		return deps.lookup(ctx, event)
	case removePermissionType:
		return deps.remove(ctx, event)
	case addPermissionType:
		return deps.add(ctx, event)
	default:
		return event.PhysicalResourceID, nil, fmt.Errorf("unsupported resource type: %s", event.ResourceType)
	}
}

// lookup recovers the statement ID of the permission granting the principal the action.
func (deps *deps) lookup(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	physicalResourceID := event.PhysicalResourceID
	if physicalResourceID == "" {
		physicalResourceID = fmt.Sprintf("%s-%s", event.LogicalResourceID, event.RequestID)
	}

	switch event.RequestType {
	case cfn.RequestCreate, cfn.RequestUpdate:
	case cfn.RequestDelete:
		return physicalResourceID, nil, nil
	default:
		return physicalResourceID, nil, fmt.Errorf("invalid request type: %s", event.RequestType)
	}

	var props lookupProperties
	if err := mapstructure.Decode(event.ResourceProperties, &props); err != nil {
		return physicalResourceID, nil, err
	}

	statementID, err := deps.findStatementID(ctx, props)
	if err != nil {
		return physicalResourceID, nil, err
	}
	if statementID == "" {
		statementID = fallbackStatementID(event)
		log.Printf("no statement for %s, using %s\n", props.ServicePrincipalToMatch, statementID)
	}

	log.Printf("Statement ID: %s\n", statementID)

	return physicalResourceID, map[string]interface{}{
		statementIDAttribute: statementID,
	}, nil
}

func (deps *deps) findStatementID(ctx context.Context, props lookupProperties) (string, error) {
	out, err := deps.lambda.GetPolicyWithContext(ctx, &lambdasdk.GetPolicyInput{
		FunctionName: aws.String(props.LambdaFunctionArn),
	})
	if isNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var doc policy
	if err := json.Unmarshal([]byte(aws.StringValue(out.Policy)), &doc); err != nil {
		return "", fmt.Errorf("parse policy of %s: %w", props.LambdaFunctionArn, err)
	}

	for _, statement := range doc.Statement {
		if matchesPrincipal(statement.Principal, props.ServicePrincipalToMatch) &&
			matchesAction(statement.Action, props.ActionToMatch) {
			return statement.Sid, nil
		}
	}

	return "", nil
}

// fallbackStatementID is stable for a given stack and logical resource so retries agree.
func fallbackStatementID(event cfn.Event) string {
	stack := event.StackID
	if i := strings.LastIndex(stack, "/"); i >= 0 {
		stack = stack[i+1:]
	}
	return fmt.Sprintf("%s-%s", event.LogicalResourceID, stack)
}

func matchesPrincipal(principal interface{}, service string) bool {
	m, ok := principal.(map[string]interface{})
	if !ok {
		return false
	}
	return m["Service"] == service
}

func matchesAction(action interface{}, want string) bool {
	switch action := action.(type) {
	case string:
		return action == want
	case []interface{}:
		return len(action) == 1 && action[0] == want
	default:
		return false
	}
}

// remove deletes the permission. A permission that is already gone counts as removed.
func (deps *deps) remove(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	var props permissionProperties
	if err := mapstructure.Decode(event.ResourceProperties, &props); err != nil {
		return event.PhysicalResourceID, nil, err
	}
	physicalResourceID := "RemovePermission-" + props.SkillID

	_, err := deps.lambda.RemovePermissionWithContext(ctx, &lambdasdk.RemovePermissionInput{
		FunctionName: aws.String(props.FunctionName),
		StatementId:  aws.String(props.StatementID),
	})
	if isNotFound(err) {
		log.Printf("statement %s already removed\n", props.StatementID)
		return physicalResourceID, nil, nil
	}
	if err != nil {
		return physicalResourceID, nil, err
	}

	log.Printf("removed statement %s\n", props.StatementID)
	return physicalResourceID, nil, nil
}

// add grants the principal the action again, now scoped to the skill.
func (deps *deps) add(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	var props permissionProperties
	if err := mapstructure.Decode(event.ResourceProperties, &props); err != nil {
		return event.PhysicalResourceID, nil, err
	}
	physicalResourceID := "AddPermission-" + props.SkillID

	if event.RequestType == cfn.RequestDelete {
		return physicalResourceID, nil, nil
	}

	_, err := deps.lambda.AddPermissionWithContext(ctx, &lambdasdk.AddPermissionInput{
		FunctionName:     aws.String(props.FunctionName),
		StatementId:      aws.String(props.StatementID),
		Principal:        aws.String(props.Principal),
		Action:           aws.String(props.Action),
		EventSourceToken: aws.String(props.EventSourceToken),
	})
	if err != nil {
		return physicalResourceID, nil, err
	}

	log.Printf("added statement %s scoped to %s\n", props.StatementID, props.EventSourceToken)
	return physicalResourceID, nil, nil
}

func isNotFound(err error) bool {
	aerr, ok := err.(awserr.Error)
	return ok && aerr.Code() == lambdasdk.ErrCodeResourceNotFoundException
}

func main() {
	sess := session.Must(session.NewSession())
	client := lambdasdk.New(sess)

	xray.AWS(client.Client)

	deps := deps{
		lambda: client,
	}

	lambda.Start(cfn.LambdaWrap(deps.handler))
}
